package qzone

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/jsonc"
)

// uploadResult carries the placement reference a successful image upload
// yields: picbo (the opaque token after "&bo=" in the returned URL) and the
// richval fragment the publish payload embeds per image.
type uploadResult struct {
	picbo   string
	richval string
}

// uploadResponse is the JS-object-literal payload the upload CGI returns.
// The success marker here is ret == 0; it is independent of the publish
// call's own marker and must be checked separately.
type uploadResponse struct {
	Ret  *int64 `json:"ret"`
	Data struct {
		URL     string      `json:"url"`
		AlbumID json.Number `json:"albumid"`
		Lloc    json.Number `json:"lloc"`
		Sloc    json.Number `json:"sloc"`
		Type    json.Number `json:"type"`
		Height  json.Number `json:"height"`
		Width   json.Number `json:"width"`
	} `json:"data"`
}

// uploadImage pushes one image to the qzone album CGI and extracts its
// placement reference.
func (c *Client) uploadImage(ctx context.Context, image []byte) (uploadResult, error) {
	form := url.Values{
		"filename":       {"filename"},
		"zzpanelkey":     {""},
		"uploadtype":     {"1"},
		"albumtype":      {"7"},
		"exttype":        {"0"},
		"skey":           {c.cookies["skey"]},
		"zzpaneluin":     {c.uin},
		"p_uin":          {c.uin},
		"uin":            {c.uin},
		"p_skey":         {c.cookies["p_skey"]},
		"output_type":    {"json"},
		"qzonetoken":     {""},
		"refer":          {"shuoshuo"},
		"charset":        {"utf-8"},
		"output_charset": {"utf-8"},
		"upload_hd":      {"1"},
		"hd_width":       {"2048"},
		"hd_height":      {"10000"},
		"hd_quality":     {"96"},
		"backUrls": {"http://upbak.photo.qzone.qq.com/cgi-bin/upload/cgi_upload_image," +
			"http://119.147.64.75/cgi-bin/upload/cgi_upload_image"},
		"url":     {c.endpoints.uploadImage + "?g_tk=" + c.gtk},
		"base64":  {"1"},
		"picfile": {base64.StdEncoding.EncodeToString(image)},
	}

	body, err := c.do(ctx, "upload", "POST", c.endpoints.uploadImage, nil, form, c.refererHeaders(), uploadTimeout)
	if err != nil {
		return uploadResult{}, &PublishError{Reason: "image upload", Err: err}
	}
	return parseUploadResponse(body)
}

// parseUploadResponse extracts the placement reference from the upload CGI
// response. The body wraps the object in a script shell and the object
// itself can carry trailing commas, so it is cut out by brace positions and
// normalized through jsonc before decoding.
func parseUploadResponse(body string) (uploadResult, error) {
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return uploadResult{}, &ParseError{Op: "upload", Err: fmt.Errorf("no object literal in response")}
	}

	var resp uploadResponse
	if err := json.Unmarshal(jsonc.ToJSON([]byte(body[start:end+1])), &resp); err != nil {
		return uploadResult{}, &ParseError{Op: "upload", Err: err}
	}
	if resp.Ret == nil {
		return uploadResult{}, &ParseError{Op: "upload", Err: fmt.Errorf("response carries no ret field")}
	}
	if *resp.Ret != 0 {
		return uploadResult{}, &ApplicationError{Op: "upload", Code: *resp.Ret, Body: body}
	}

	parts := strings.SplitN(resp.Data.URL, "&bo=", 2)
	if len(parts) < 2 {
		return uploadResult{}, &ParseError{Op: "upload", Err: fmt.Errorf("upload url carries no bo token")}
	}

	d := resp.Data
	richval := fmt.Sprintf(",%s,%s,%s,%s,%s,%s,,%s,%s",
		d.AlbumID, d.Lloc, d.Sloc, d.Type, d.Height, d.Width, d.Height, d.Width)
	return uploadResult{picbo: parts[1], richval: richval}, nil
}

// Publish posts a new entry to the account's own wall and returns the
// remote-assigned post ID. Images, if any, are uploaded individually first
// and their placement references concatenated into the publish payload.
// The publish success marker (a tid in the JSON body) is checked
// independently of the upload marker.
func (c *Client) Publish(ctx context.Context, content string, images [][]byte) (string, error) {
	form := url.Values{
		"syn_tweet_verson": {"1"},
		"paramstr":         {"1"},
		"who":              {"1"},
		"con":              {content},
		"feedversion":      {"1"},
		"ver":              {"1"},
		"ugc_right":        {"1"},
		"to_sign":          {"0"},
		"hostuin":          {c.uin},
		"code_version":     {"1"},
		"format":           {"json"},
		"qzreferrer":       {"https://user.qzone.qq.com/" + c.uin},
	}

	if len(images) > 0 {
		picbos := make([]string, 0, len(images))
		richvals := make([]string, 0, len(images))
		for _, img := range images {
			up, err := c.uploadImage(ctx, img)
			if err != nil {
				return "", err
			}
			picbos = append(picbos, up.picbo)
			richvals = append(richvals, up.richval)
		}
		form.Set("pic_bo", strings.Join(picbos, ","))
		form.Set("richtype", "1")
		form.Set("richval", strings.Join(richvals, "\t"))
	}

	params := url.Values{"g_tk": {c.gtk}, "uin": {c.uin}}
	body, err := c.do(ctx, "publish", "POST", c.endpoints.publish, params, form, c.refererHeaders(), callTimeout)
	if err != nil {
		return "", &PublishError{Reason: "publish call", Err: err}
	}

	var resp struct {
		Tid string `json:"tid"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return "", &PublishError{Reason: "response is not JSON", Err: err}
	}
	if resp.Tid == "" {
		return "", &PublishError{Reason: "response carries no tid"}
	}
	return resp.Tid, nil
}
