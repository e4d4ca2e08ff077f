package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/lysyi3m/remix-grab/app/database"
)

const fallbackMediaType = "application/octet-stream"

// Generator renders the download ledger as an RSS 2.0 document so other feed
// readers can follow what has been fetched.
type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

func (g *Generator) Run(sourceFeedURL string, downloads []database.Download) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", "remix-grab downloads", 4)
	g.writeElement(&buf, "link", sourceFeedURL, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Media downloaded from %s", cmp.Or(sourceFeedURL, "the configured feed")), 4)

	selfLink := g.baseURL + "/feeds/downloads"
	fmt.Fprintf(&buf, "    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink))

	lastBuildDate := time.Now().UTC()
	if len(downloads) > 0 {
		lastBuildDate = downloads[0].CreatedAt
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("remix-grab/%s", g.version), 4)

	for _, d := range downloads {
		if d.Status != database.DownloadStatusDownloaded {
			continue
		}
		g.writeItem(&buf, d)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, d database.Download) {
	buf.WriteString("    <item>\n")

	guid := cmp.Or(d.MediaURL, d.Link)
	fmt.Fprintf(buf, "      <guid isPermaLink=\"%t\">", isURL(guid))
	xml.EscapeText(buf, []byte(guid))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", cmp.Or(d.Title, path.Base(d.Path)), 6)
	g.writeElement(buf, "link", d.Link, 6)
	if d.Path != "" {
		g.writeElement(buf, "description", "Saved to "+d.Path, 6)
	}
	g.writeElement(buf, "pubDate", d.CreatedAt.Format(time.RFC1123Z), 6)

	if d.MediaURL != "" {
		fmt.Fprintf(buf, "      <enclosure url=\"%s\" length=\"%d\" type=\"%s\" />\n",
			html.EscapeString(d.MediaURL),
			d.Bytes,
			html.EscapeString(mediaType(d.MediaURL)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func mediaType(mediaURL string) string {
	ext := path.Ext(mediaURL)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if ext == ".mp3" {
		return "audio/mpeg"
	}
	if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
		return t
	}
	return fallbackMediaType
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
