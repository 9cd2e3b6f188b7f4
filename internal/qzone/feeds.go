package qzone

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const preloadCallback = "_preloadCallback"

// msglistResponse is the JSONP payload of the per-account feed query.
type msglistResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	LoginInfo struct {
		Name string `json:"name"`
	} `json:"logininfo"`
	MsgList []rawMsg `json:"msglist"`
}

type rawMsg struct {
	Tid         string      `json:"tid"`
	CreatedTime int64       `json:"created_time"`
	CreateTime  string      `json:"createTime"`
	Content     string      `json:"content"`
	Pic         []rawPic    `json:"pic"`
	Video       []rawVideo  `json:"video"`
	RtCon       *rawContent `json:"rt_con"`
	CommentList []rawMsgCmt `json:"commentlist"`
}

type rawPic struct {
	URL1     string `json:"url1"`
	PicID    string `json:"pic_id"`
	SmallURL string `json:"smallurl"`
}

type rawVideo struct {
	URL1   string `json:"url1"`
	PicURL string `json:"pic_url"`
	URL3   string `json:"url3"`
}

type rawContent struct {
	Content string `json:"content"`
}

type rawMsgCmt struct {
	Content     string      `json:"content"`
	Uin         json.Number `json:"uin"`
	Name        string      `json:"name"`
	CreateTime  json.Number `json:"createTime"`
	CreateTime2 json.Number `json:"createTime2"`
}

// ListFeed reads up to count recent posts from the named account's feed via
// the JSONP msglist endpoint. A nonzero remote status (restricted
// visibility is the common case) comes back as *RemoteStatusError, as does
// an empty result after filtering.
//
// Items that already carry the agent's own display name in their comment
// thread are dropped: that is the de facto "already commented" signal for
// feeds with no durable dedup record. The heuristic matches by the current
// nickname, so a display-name change silently forgets past comments.
func (c *Client) ListFeed(ctx context.Context, targetQQ string, count int) ([]FeedItem, error) {
	params := url.Values{
		"g_tk":                 {c.gtk},
		"uin":                  {targetQQ},
		"ftype":                {"0"},
		"sort":                 {"0"},
		"pos":                  {"0"},
		"num":                  {strconv.Itoa(count)},
		"replynum":             {"100"},
		"callback":             {preloadCallback},
		"code_version":         {"1"},
		"format":               {"jsonp"},
		"need_comment":         {"1"},
		"need_private_comment": {"1"},
	}
	headers := map[string]string{
		"Referer": "https://user.qzone.qq.com/" + targetQQ,
	}
	body, err := c.do(ctx, "list_feed", "GET", c.endpoints.feedList, params, nil, headers, callTimeout)
	if err != nil {
		return nil, err
	}

	raw := stripJSONP(body, preloadCallback)
	var resp msglistResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &ParseError{Op: "list_feed", Err: err}
	}
	if resp.LoginInfo.Name != "" {
		c.nickname = resp.LoginInfo.Name
	}
	if resp.Code != 0 {
		return nil, &RemoteStatusError{Code: resp.Code, Message: resp.Message}
	}

	items := make([]FeedItem, 0, len(resp.MsgList))
	for _, msg := range resp.MsgList {
		if targetQQ != c.uin && c.alreadyCommented(msg.CommentList) {
			log.Printf("[qzone] already commented on %s, skipping", msg.Tid)
			continue
		}
		items = append(items, c.itemFromMsg(ctx, targetQQ, msg))
	}
	if len(items) == 0 {
		return nil, &RemoteStatusError{Code: 0, Message: "nothing new to read"}
	}
	return items, nil
}

// alreadyCommented reports whether the agent's own display name appears in
// the comment thread.
func (c *Client) alreadyCommented(comments []rawMsgCmt) bool {
	if c.nickname == "" {
		return false
	}
	for _, cm := range comments {
		if cm.Name == c.nickname {
			return true
		}
	}
	return false
}

func (c *Client) itemFromMsg(ctx context.Context, targetQQ string, msg rawMsg) FeedItem {
	item := FeedItem{
		ID:       msg.Tid,
		AuthorID: targetQQ,
		Content:  msg.Content,
	}
	if msg.CreatedTime > 0 {
		item.CreatedAt = time.Unix(msg.CreatedTime, 0).Format("2006-01-02 15:04:05")
	} else if msg.CreateTime != "" {
		item.CreatedAt = msg.CreateTime
	}
	if msg.RtCon != nil {
		item.ForwardedContent = msg.RtCon.Content
	}

	for _, pic := range msg.Pic {
		if u := firstNonEmpty(pic.URL1, pic.PicID, pic.SmallURL); u != "" {
			item.ImageURLs = append(item.ImageURLs, u)
		}
	}
	for _, v := range msg.Video {
		// Video covers are read like images until real video understanding
		// exists; the m3u8 ref is kept separately.
		if u := firstNonEmpty(v.URL1, v.PicURL); u != "" {
			item.ImageURLs = append(item.ImageURLs, u)
		}
		if v.URL3 != "" {
			item.VideoRefs = append(item.VideoRefs, v.URL3)
		}
	}
	item.ImageDescriptions = c.describeImages(ctx, item.ImageURLs)

	for _, cm := range msg.CommentList {
		item.Comments = append(item.Comments, Comment{
			AuthorID:   cm.Uin.String(),
			AuthorName: cm.Name,
			Content:    cm.Content,
			CreatedAt:  firstNonEmpty(cm.CreateTime.String(), cm.CreateTime2.String()),
		})
	}
	return item
}

// describeImages runs the configured describer over each image URL,
// fanning out a few at a time. Failures skip that one image.
func (c *Client) describeImages(ctx context.Context, urls []string) []string {
	if c.describer == nil || len(urls) == 0 {
		return nil
	}

	descriptions := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			desc, err := c.describer.Describe(gctx, u)
			if err != nil {
				log.Printf("[qzone] image description failed for %s: %v", u, err)
				return nil
			}
			descriptions[i] = desc
			return nil
		})
	}
	g.Wait()

	out := descriptions[:0]
	for _, d := range descriptions {
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// SendHistory formats the account's own recent posts into a prompt block so
// new posts can avoid repeating recent topics.
func (c *Client) SendHistory(ctx context.Context, count int) (string, error) {
	items, err := c.ListFeed(ctx, c.uin, count)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("===================")
	for _, item := range items {
		if item.ForwardedContent == "" {
			fmt.Fprintf(&b, "\n时间：'%s'。\n说说内容：'%s'\n图片：'%s'\n===================",
				item.CreatedAt, item.Content, strings.Join(item.ImageDescriptions, "；"))
		} else {
			fmt.Fprintf(&b, "\n时间：'%s'。\n转发了一条说说，内容为：'%s'\n图片：'%s'\n对该说说的评论为：'%s'\n===================",
				item.CreatedAt, item.ForwardedContent, strings.Join(item.ImageDescriptions, "；"), item.Content)
		}
	}
	return b.String(), nil
}

// stripJSONP removes a callback(...) wrapper when present; payloads appear
// both wrapped and bare in the wild.
func stripJSONP(body, callback string) string {
	prefix := callback + "("
	if strings.HasPrefix(body, prefix) && strings.HasSuffix(body, ");") {
		return body[len(prefix) : len(body)-2]
	}
	return body
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
