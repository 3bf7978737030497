// Package prompt builds the generation request for a travel diary from photo
// metadata, the photos themselves and the user's style options.
package prompt

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"travel-diary-backend/internal/metadata"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

const systemInstruction = "당신은 여행 사진을 보고 여행 일기를 써 주는 여행 일기 작가입니다. " +
	"사진 속 장면과 사람, 분위기를 섬세하게 읽어내고, 사용자가 고른 조건에 맞춰 " +
	"일기 한 편을 한국어로 작성합니다."

// InlineImage is an image attached to the request as raw bytes
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// Request is a complete generation request
type Request struct {
	System          string
	User            string
	Images          []InlineImage
	MaxOutputTokens int32
	Temperature     float32
}

// Composer assembles generation requests
type Composer struct {
	maxImageEdge    int
	maxOutputTokens int32
	temperature     float32
}

// NewComposer creates a new composer. Images larger than maxImageEdge on
// either side are downsized before being attached; 0 disables resizing.
func NewComposer(maxImageEdge int, maxOutputTokens int32, temperature float32) *Composer {
	return &Composer{
		maxImageEdge:    maxImageEdge,
		maxOutputTokens: maxOutputTokens,
		temperature:     temperature,
	}
}

// Compose builds the request. opts must already be normalized and images must
// be non-empty; both are checked by the caller.
func (c *Composer) Compose(tripDate string, results []metadata.Result, opts Options, images []metadata.Image) *Request {
	req := &Request{
		System:          systemInstruction,
		User:            userInstruction(tripDate, results, opts),
		Images:          make([]InlineImage, 0, len(images)),
		MaxOutputTokens: c.maxOutputTokens,
		Temperature:     c.temperature,
	}
	for _, img := range images {
		req.Images = append(req.Images, c.prepare(img))
	}
	return req
}

func userInstruction(tripDate string, results []metadata.Result, opts Options) string {
	var sb strings.Builder

	sb.WriteString("첨부한 사진들로 여행 일기를 작성해 주세요.\n\n")
	sb.WriteString("여행 날짜: ")
	sb.WriteString(tripDate)
	sb.WriteString("\n")

	writeOption(&sb, "함께한 사람", label(companions, opts.Companion))
	writeOption(&sb, "기분", label(feelings, opts.Feeling))
	writeOption(&sb, "날씨", label(weathers, opts.Weather))

	if places := placeNames(results); len(places) > 0 {
		sb.WriteString("촬영 장소: ")
		sb.WriteString(strings.Join(places, ", "))
		sb.WriteString("\n")
	}

	sb.WriteString("\n작성 규칙:\n")
	sb.WriteString("- 첫 줄에는 감성적인 제목만 쓰고, \"제목:\" 같은 표시는 붙이지 마세요.\n")
	sb.WriteString("- 둘째 줄부터 본문을 쓰고, \"본문:\" 같은 표시는 붙이지 마세요.\n")
	sb.WriteString("- 사진 속 장면, 사람, 분위기를 본문에 반영하세요.\n")
	sb.WriteString("- 사진이나 촬영 장소로 지명을 알 수 있다면 본문에 자연스럽게 언급하세요.\n")
	sb.WriteString("- 분량: ")
	sb.WriteString(lengthGuide(opts.Length))
	sb.WriteString("\n")
	sb.WriteString("- 문체: ")
	sb.WriteString(ToneVoice(opts.Tone))
	sb.WriteString("\n")

	return sb.String()
}

func writeOption(sb *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", name, value)
}

// placeNames returns the distinct resolved place names in photo order.
func placeNames(results []metadata.Result) []string {
	seen := make(map[string]bool)
	var places []string
	for _, r := range results {
		if r.PlaceName == "" || seen[r.PlaceName] {
			continue
		}
		seen[r.PlaceName] = true
		places = append(places, r.PlaceName)
	}
	return places
}

func lengthGuide(length string) string {
	switch length {
	case "short":
		return "300자 안팎으로 짧게"
	case "long":
		return "1000자 안팎으로 길게"
	default:
		return "600자 안팎"
	}
}

// ToneVoice returns the voice and register requirement for a tone. An unset
// tone gets a neutral diary voice.
func ToneVoice(tone string) string {
	switch tone {
	case ToneSentimental:
		return "감성적인 문체. 비유와 은유 같은 문학적 표현을 살려 여운이 남도록 쓰세요."
	case TonePlain:
		return "담백한 문체. 꾸밈말과 비유 없이 있었던 일과 느낀 점을 사실대로 쓰세요."
	case ToneCheerful:
		return "발랄한 문체. 밝고 경쾌하게, 친구에게 말하듯 반말과 감탄사를 써도 좋습니다."
	case ToneHumorous:
		return "유머러스한 문체. 재치 있는 과장과 농담을 섞고, 편한 반말을 써도 좋습니다."
	default:
		return "차분한 일기 문체로 쓰세요."
	}
}

// prepare downsizes an image for upload. Images the decoder cannot read are
// attached unchanged.
func (c *Composer) prepare(img metadata.Image) InlineImage {
	original := InlineImage{MIMEType: http.DetectContentType(img.Data), Data: img.Data}
	if c.maxImageEdge <= 0 {
		return original
	}

	decoded, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		log.Debug().Err(err).Str("file", img.Name).Msg("Attaching image without resizing")
		return original
	}

	b := decoded.Bounds()
	if b.Dx() <= c.maxImageEdge && b.Dy() <= c.maxImageEdge {
		return original
	}

	resized := imaging.Fit(decoded, c.maxImageEdge, c.maxImageEdge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		log.Warn().Err(err).Str("file", img.Name).Msg("Failed to encode resized image")
		return original
	}

	return InlineImage{MIMEType: "image/jpeg", Data: buf.Bytes()}
}
