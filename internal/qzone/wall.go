package qzone

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/jsonc"
)

const wallCallback = "_Callback"

// wallFeed is one entry of the aggregated wall response. The interesting
// content is an HTML fragment; the envelope only identifies the author and
// the app that produced the entry.
type wallFeed struct {
	AppID looseString `json:"appid"`
	Uin   looseString `json:"uin"`
	Key   string      `json:"key"`
	HTML  string      `json:"html"`
}

// looseString absorbs fields the wall endpoint emits sometimes as numbers
// and sometimes as strings.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = looseString(num.String())
	return nil
}

// ListWall reads the account's own aggregated wall: recent posts of the
// account and its friends, rendered server-side as HTML fragments. Items the
// account has already liked are treated as read and skipped -- except the
// account's own posts, whose comment threads must always be rescanned for
// new replies.
func (c *Client) ListWall(ctx context.Context, count int) ([]FeedItem, error) {
	params := url.Values{
		"uin":             {c.uin},
		"scope":           {"0"},
		"view":            {"1"},
		"filter":          {"all"},
		"flag":            {"1"},
		"applist":         {"all"},
		"pagenum":         {"1"},
		"count":           {strconv.Itoa(count)},
		"aisortEndTime":   {"0"},
		"aisortOffset":    {"0"},
		"aisortBeginTime": {"0"},
		"begintime":       {"0"},
		"format":          {"json"},
		"g_tk":            {c.gtk},
		"useutf8":         {"1"},
		"outputhtmlfeed":  {"1"},
	}
	headers := map[string]string{
		"Referer": "https://user.qzone.qq.com/" + c.uin,
	}
	body, err := c.do(ctx, "list_wall", "GET", c.endpoints.wall, params, nil, headers, callTimeout)
	if err != nil {
		return nil, err
	}

	feeds, err := parseWallEnvelope(body)
	if err != nil {
		return nil, err
	}

	var items []FeedItem
	ownCount := 0
	for _, feed := range feeds {
		// Everything that is not appid 311 is ads or app noise.
		if string(feed.AppID) != "311" {
			continue
		}
		if feed.Uin == "" || feed.Key == "" || feed.HTML == "" {
			log.Printf("[qzone] wall entry missing uin/key/html, skipping")
			continue
		}

		item, isRead, err := c.parseWallItem(string(feed.Uin), feed.Key, feed.HTML)
		if err != nil {
			log.Printf("[qzone] wall item %s unparseable: %v", feed.Key, err)
			continue
		}
		own := item.AuthorID == c.uin
		if isRead && !own {
			continue
		}
		if own {
			ownCount++
		}
		item.ImageDescriptions = c.describeImages(ctx, item.ImageURLs)
		items = append(items, item)
	}
	log.Printf("[qzone] parsed %d wall items (%d own)", len(items), ownCount)
	return items, nil
}

// parseWallEnvelope unwraps the optional _Callback(...) shell and decodes
// the JS-flavored JSON (undefined literals, trailing commas) down to the
// feed entries.
func parseWallEnvelope(body string) ([]wallFeed, error) {
	raw := stripJSONP(body, wallCallback)
	raw = strings.ReplaceAll(raw, "undefined", "null")

	var envelope struct {
		Data struct {
			Data []*wallFeed `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw)), &envelope); err != nil {
		return nil, &ParseError{Op: "list_wall", Err: err}
	}

	feeds := make([]wallFeed, 0, len(envelope.Data.Data))
	for _, f := range envelope.Data.Data {
		if f != nil {
			feeds = append(feeds, *f)
		}
	}
	return feeds, nil
}

// parseWallItem recovers a FeedItem from one server-rendered HTML fragment.
// The read state comes from the like button's data-islike attribute.
func (c *Client) parseWallItem(authorQQ, key, html string) (FeedItem, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return FeedItem{}, false, fmt.Errorf("parse fragment: %w", err)
	}

	isRead := likedState(doc)

	item := FeedItem{
		ID:       key,
		AuthorID: authorQQ,
		Content:  collapseText(doc.Find("div.f-info").First()),
	}

	// Forwarded posts render the original under div.txt-box as
	// "昵称：内容"; everything after the first full-width colon is the
	// forwarded body.
	if txtBox := doc.Find("div.txt-box").First(); txtBox.Length() > 0 {
		rt := collapseText(txtBox)
		if idx := strings.Index(rt, "："); idx >= 0 {
			rt = strings.TrimSpace(rt[idx+len("："):])
		}
		item.ForwardedContent = rt
	}

	seen := make(map[string]bool)
	doc.Find("div.img-box img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		// qzonestyle URLs are emoticon sprites, not post media.
		if !ok || strings.HasPrefix(src, "http://qzonestyle.gtimg.cn") || seen[src] {
			return
		}
		seen[src] = true
		item.ImageURLs = append(item.ImageURLs, src)
	})
	if cover, ok := doc.Find("div.video-img img").First().Attr("src"); ok && !seen[cover] {
		item.ImageURLs = append(item.ImageURLs, cover)
	}
	if ref, ok := doc.Find("div.img-box.f-video-wrap.play").First().Attr("url3"); ok && ref != "" {
		item.VideoRefs = append(item.VideoRefs, ref)
	}

	item.Comments = parseCommentThread(doc)
	return item, isRead, nil
}

// likedState finds the like button and reads its data-islike attribute.
// A missing button means the state is unknown and the item counts as unread.
func likedState(doc *goquery.Document) bool {
	btn := doc.Find("a.qz_like_btn_v3").First()
	if btn.Length() == 0 {
		btn = doc.Find("a[data-islike]").First()
	}
	if btn.Length() == 0 {
		return false
	}
	return btn.AttrOr("data-islike", "") == "1"
}

// parseCommentThread walks every comment item in the fragment, main
// comments and replies alike, and infers parent/child linkage from the DOM:
// replies live inside a div.mod-comments-sub nested under the parent's li.
func parseCommentThread(doc *goquery.Document) []Comment {
	var comments []Comment
	doc.Find("li.comments-item.bor3").Each(func(_ int, li *goquery.Selection) {
		cm := Comment{
			ID:         li.AttrOr("data-tid", ""),
			AuthorID:   li.AttrOr("data-uin", ""),
			AuthorName: li.AttrOr("data-nick", ""),
		}

		if content := li.Find("div.comments-content").First(); content.Length() > 0 {
			// The op div holds the reply/delete buttons, not comment text.
			content.Find("div.comments-op").Remove()
			cm.Content = collapseText(content)
		}

		if sub := li.ParentsFiltered("div.mod-comments-sub").First(); sub.Length() > 0 {
			if parent := sub.ParentsFiltered("li.comments-item").First(); parent.Length() > 0 {
				cm.ParentID = parent.AttrOr("data-tid", "")
			}
		}

		comments = append(comments, cm)
	})
	return comments
}

// collapseText extracts the selection's text with runs of whitespace
// squeezed to single spaces.
func collapseText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
