package feed

import (
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Latest Remixes</title>
    <link>http://www.example.org</link>
    <description>The 20 most recent remixes</description>
    <language>en-us</language>
    <item>
      <title>Sonic the Hedgehog 'Green Hill Groove'</title>
      <link>http://www.example.org/remix/OCR00003/</link>
      <guid>http://www.example.org/remix/OCR00003/</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Chrono Trigger 'Time Circuits'</title>
      <link>http://www.example.org/remix/OCR00002/</link>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Final Fantasy VI 'Dancing Mad'</title>
      <link>http://www.example.org/remix/OCR00001/</link>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	metadata, entries, err := parser.Run([]byte(rssData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Latest Remixes" {
		t.Errorf("Expected title 'Latest Remixes', got: %s", metadata.Title)
	}
	if metadata.Language != "en-us" {
		t.Errorf("Expected language 'en-us', got: %s", metadata.Language)
	}

	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got: %d", len(entries))
	}

	// Feed order is preserved, newest first.
	expectedLinks := []string{
		"http://www.example.org/remix/OCR00003/",
		"http://www.example.org/remix/OCR00002/",
		"http://www.example.org/remix/OCR00001/",
	}
	for i, link := range expectedLinks {
		if entries[i].Link != link {
			t.Errorf("Entry %d: expected link '%s', got '%s'", i, link, entries[i].Link)
		}
	}

	if entries[0].Title != "Sonic the Hedgehog 'Green Hill Groove'" {
		t.Errorf("Expected first title, got: %s", entries[0].Title)
	}
	if entries[0].PublishedAt == nil {
		t.Error("Expected published date to be parsed")
	}
	if entries[1].GUID != "http://www.example.org/remix/OCR00002/" {
		t.Errorf("Expected GUID to fall back to link, got: %s", entries[1].GUID)
	}
	if entries[2].PublishedAt != nil {
		t.Error("Expected no published date for entry without pubDate")
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>  Test Entry  </title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
  </entry>
</feed>`

	parser := NewParser()
	metadata, entries, err := parser.Run([]byte(atomData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Test Atom Feed" {
		t.Errorf("Expected title 'Test Atom Feed', got: %s", metadata.Title)
	}

	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(entries))
	}

	entry := entries[0]
	if entry.Title != "Test Entry" {
		t.Errorf("Expected trimmed title 'Test Entry', got: %q", entry.Title)
	}
	if entry.Link != "https://example.com/entry1" {
		t.Errorf("Expected link 'https://example.com/entry1', got: %s", entry.Link)
	}
	if entry.GUID != "urn:uuid:entry-1" {
		t.Errorf("Expected GUID 'urn:uuid:entry-1', got: %s", entry.GUID)
	}
	if entry.PublishedAt == nil {
		t.Error("Expected updated date to stand in for published date")
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()
	_, _, err := parser.Run([]byte("invalid xml"))

	if err == nil {
		t.Error("Expected error for invalid XML")
	}
}

func TestParseEmptyChannel(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Empty</title></channel></rss>`

	parser := NewParser()
	_, entries, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected 0 entries, got: %d", len(entries))
	}
}

func TestParseRSSWithHTMLEntities(t *testing.T) {
	rssData := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Entities</title>
	<item>
		<title>Mega Man &amp; Bass &#39;Robot Revenge&#39;</title>
		<link>http://www.example.org/remix/OCR00010/</link>
	</item>
</channel>
</rss>`

	parser := NewParser()
	_, entries, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(entries))
	}
	if entries[0].Title != "Mega Man & Bass 'Robot Revenge'" {
		t.Errorf("Expected decoded title, got: %s", entries[0].Title)
	}
}
