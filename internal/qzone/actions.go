package qzone

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Like marks a feed item as liked. Transport status 200 is the whole success
// contract for this endpoint.
func (c *Client) Like(ctx context.Context, itemID, authorQQ string) error {
	moodKey := fmt.Sprintf("http://user.qzone.qq.com/%s/mood/%s", authorQQ, itemID)
	form := url.Values{
		"qzreferrer": {"https://user.qzone.qq.com/" + c.uin},
		"opuin":      {c.uin},
		"unikey":     {moodKey},
		"curkey":     {moodKey},
		"appid":      {"311"},
		"from":       {"1"},
		"typeid":     {"0"},
		"abstime":    {strconv.FormatInt(time.Now().Unix(), 10)},
		"fid":        {itemID},
		"active":     {"0"},
		"format":     {"json"},
		"fupdate":    {"1"},
	}
	params := url.Values{"g_tk": {c.gtk}}
	_, err := c.do(ctx, "like", "POST", c.endpoints.like, params, form, c.refererHeaders(), callTimeout)
	return err
}

// Comment adds a top-level comment to a feed item. As with Like, transport
// status 200 means success.
func (c *Client) Comment(ctx context.Context, itemID, authorQQ, content string) error {
	form := url.Values{
		"topicId":    {fmt.Sprintf("%s_%s__1", authorQQ, itemID)},
		"uin":        {c.uin},
		"hostUin":    {authorQQ},
		"feedsType":  {"100"},
		"inCharset":  {"utf-8"},
		"outCharset": {"utf-8"},
		"plat":       {"qzone"},
		"source":     {"ic"},
		"platformid": {"52"},
		"format":     {"fs"},
		"ref":        {"feeds"},
		"content":    {content},
	}
	params := url.Values{"g_tk": {c.gtk}}
	_, err := c.do(ctx, "comment", "POST", c.endpoints.comment, params, form, c.refererHeaders(), callTimeout)
	return err
}

// Reply answers a comment on one of the account's own posts. The endpoint
// wraps its result in a frameElement.callback script fragment; transport
// success alone does not mean the reply landed, the embedded code must be
// exactly 0.
//
// authorQQ and commentID never make it into the payload: the endpoint
// threads replies by the 回复@… content prefix and paramstr, not by the
// comment's id. They stay in the signature to keep callers honest about
// which comment they mean.
func (c *Client) Reply(ctx context.Context, itemID, authorQQ, authorName, commentID, content string) error {
	form := url.Values{
		"topicId":    {fmt.Sprintf("%s_%s__1", c.uin, itemID)},
		"uin":        {c.uin},
		"hostUin":    {c.uin},
		"content":    {fmt.Sprintf("回复@%s：%s", authorName, content)},
		"format":     {"fs"},
		"plat":       {"qzone"},
		"source":     {"ic"},
		"platformid": {"52"},
		"ref":        {"feeds"},
		"richtype":   {""},
		"richval":    {""},
		"paramstr":   {"@" + authorName},
	}
	params := url.Values{"g_tk": {c.gtk}}
	body, err := c.do(ctx, "reply", "POST", c.endpoints.reply, params, form, nil, callTimeout)
	if err != nil {
		return err
	}

	code, ok := extractCallbackCode(body)
	if !ok {
		return &ParseError{Op: "reply", Err: fmt.Errorf("no callback code in response")}
	}
	if code != 0 {
		return &ApplicationError{Op: "reply", Code: code, Body: body}
	}
	return nil
}
