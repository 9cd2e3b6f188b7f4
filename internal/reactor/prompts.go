package reactor

import (
	"fmt"
	"strings"

	"github.com/internetsb/Maizone/internal/qzone"
)

// persona is prepended to every generation prompt so comments and replies
// keep one consistent voice.
const persona = "你是一个活跃在QQ空间的年轻人，说话自然、友善、带点幽默感，" +
	"喜欢用简短口语化的中文，偶尔用一两个表情符号，从不使用书面腔。"

// buildCommentPrompt renders the prompt for commenting on a friend's post.
func buildCommentPrompt(item *qzone.FeedItem) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n你刷到了好友发的一条说说：\n")
	fmt.Fprintf(&b, "内容：%s\n", item.Content)
	if item.ForwardedContent != "" {
		fmt.Fprintf(&b, "转发的原文：%s\n", item.ForwardedContent)
	}
	if len(item.ImageDescriptions) > 0 {
		fmt.Fprintf(&b, "配图内容：%s\n", strings.Join(item.ImageDescriptions, "；"))
	} else if len(item.ImageURLs) > 0 {
		fmt.Fprintf(&b, "这条说说带了%d张图片。\n", len(item.ImageURLs))
	}
	if len(item.VideoRefs) > 0 {
		b.WriteString("这条说说带了视频。\n")
	}
	b.WriteString("\n请写一条简短的评论（30字以内），只输出评论内容本身，不要加引号。")
	return b.String()
}

// buildReplyPrompt renders the prompt for answering a comment under the
// bot's own post.
func buildReplyPrompt(item *qzone.FeedItem, c qzone.Comment) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n你之前发了一条说说：\n")
	fmt.Fprintf(&b, "内容：%s\n", item.Content)
	fmt.Fprintf(&b, "\n好友 %s 评论道：%s\n", c.AuthorName, c.Content)
	b.WriteString("\n请写一条简短的回复（30字以内），只输出回复内容本身，不要加引号。")
	return b.String()
}
