package recognize

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/banshee-data/gatepass/internal/httputil"
	"github.com/banshee-data/gatepass/internal/raster"
)

// Remote sends preprocessed images to an OCR HTTP service.
//
// The request is JSON: {"image": "<base64 PNG>", "language", "whitelist",
// "page_seg_mode"}. Services disagree on reply field names, so the reply is
// accepted as any of text/result/plate and confidence/conf/score. Scores in
// [0, 1] are rescaled to 0–100.
type Remote struct {
	Endpoint string
	Client   httputil.HTTPClient
}

// NewRemote returns a Remote engine posting to endpoint. A nil client uses
// http.DefaultClient.
func NewRemote(endpoint string, client httputil.HTTPClient) *Remote {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &Remote{Endpoint: endpoint, Client: client}
}

type remoteRequest struct {
	Image       string      `json:"image"`
	Language    string      `json:"language,omitempty"`
	Whitelist   string      `json:"whitelist,omitempty"`
	PageSegMode PageSegMode `json:"page_seg_mode,omitempty"`
}

// remoteReply holds every field spelling seen from OCR services.
type remoteReply struct {
	Text       *string  `json:"text"`
	Result     *string  `json:"result"`
	Plate      *string  `json:"plate"`
	Confidence *float64 `json:"confidence"`
	Conf       *float64 `json:"conf"`
	Score      *float64 `json:"score"`
}

// toResult normalises a reply into a Result.
func (r remoteReply) toResult() Result {
	var res Result
	for _, s := range []*string{r.Text, r.Result, r.Plate} {
		if s != nil && strings.TrimSpace(*s) != "" {
			res.Text = strings.TrimSpace(*s)
			break
		}
	}
	for _, c := range []*float64{r.Confidence, r.Conf, r.Score} {
		if c != nil {
			res.Confidence = *c
			break
		}
	}
	if res.Confidence > 0 && res.Confidence <= 1 {
		res.Confidence *= 100
	}
	res.Confidence = clampConfidence(res.Confidence)
	return res
}

// Recognize posts img to the service.
func (r *Remote) Recognize(ctx context.Context, img *raster.Image, opts Options) (Result, error) {
	png, err := raster.EncodePNG(img)
	if err != nil {
		return Result{}, err
	}
	req := remoteRequest{
		Image:       base64.StdEncoding.EncodeToString(png),
		Language:    opts.Language,
		Whitelist:   opts.Whitelist,
		PageSegMode: opts.PageSegMode,
	}

	var reply remoteReply
	if err := httputil.PostJSON(ctx, r.Client, r.Endpoint, req, &reply); err != nil {
		return Result{}, fmt.Errorf("remote recognizer: %w", err)
	}
	res := reply.toResult()
	if res.Text == "" {
		return Result{}, ErrEmptyResult
	}
	return res, nil
}
