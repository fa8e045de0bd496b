package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/minio/minio-go/v7"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Generator 将简历内容渲染为缩略图资产并负责其清理。
// 空白文本由调用方短路，不应到达 Generate。
type Generator interface {
	// Generate 渲染 text 并以 uniqueKey 作为对象命名的一部分，返回对象路径。
	Generate(ctx context.Context, text, uniqueKey string) (string, error)
	// Delete 删除先前生成的对象路径；对象不存在视为成功。
	Delete(ctx context.Context, path string) error
	// DeleteForResume 删除某个简历名下的全部缩略图资产。
	DeleteForResume(ctx context.Context, resumeID string) error
}

// ObjectStore 是 Generator 依赖的最小对象存储能力，由 storage.Client 满足。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	DeleteObject(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

const (
	cardWidth   = 400
	cardHeight  = 300
	cardPadding = 20
	maxRunes    = 300

	objectPrefix = "thumbnails/resumes"
)

// Renderer 用 gg 把内容文本画成一张 400x300 的卡片并上传到对象存储。
type Renderer struct {
	store ObjectStore
	face  font.Face
}

// NewRenderer 构造渲染器。fontPath 为空或加载失败时退回内置点阵字体。
func NewRenderer(store ObjectStore, fontPath string) (*Renderer, error) {
	face := font.Face(basicfont.Face7x13)

	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("read font %q: %w", fontPath, err)
		}
		parsed, err := truetype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %q: %w", fontPath, err)
		}
		face = truetype.NewFace(parsed, &truetype.Options{Size: 14})
	}

	return &Renderer{store: store, face: face}, nil
}

// Generate 渲染文本卡片并上传，返回对象路径。
func (r *Renderer) Generate(ctx context.Context, text, uniqueKey string) (string, error) {
	sanitized := sanitizeContent(text)
	if sanitized == "" {
		sanitized = "Resume"
	}

	dc := gg.NewContext(cardWidth, cardHeight)
	dc.SetHexColor("#F0F0F0")
	dc.Clear()
	dc.SetFontFace(r.face)
	dc.SetHexColor("#323232")
	dc.DrawStringWrapped(
		sanitized,
		cardPadding, cardPadding,
		0, 0,
		cardWidth-2*cardPadding,
		1.35,
		gg.AlignLeft,
	)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return "", fmt.Errorf("encode thumbnail png: %w", err)
	}

	objectName := fmt.Sprintf("%s/%s_%s.png",
		objectPrefix,
		uniqueKey,
		time.Now().UTC().Format("20060102150405"),
	)

	if _, err := r.store.UploadFile(ctx, objectName, &buf, int64(buf.Len()), "image/png"); err != nil {
		return "", fmt.Errorf("upload thumbnail %q: %w", objectName, err)
	}

	return objectName, nil
}

// Delete 删除对象；底层存储对不存在的对象已幂等处理。
func (r *Renderer) Delete(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	return r.store.DeleteObject(ctx, path)
}

// DeleteForResume 按命名前缀批量回收简历的缩略图对象。
func (r *Renderer) DeleteForResume(ctx context.Context, resumeID string) error {
	if strings.TrimSpace(resumeID) == "" {
		return nil
	}
	return r.store.DeletePrefix(ctx, fmt.Sprintf("%s/%s_", objectPrefix, resumeID))
}

var (
	mdLinkRe    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdMarkupRe  = regexp.MustCompile("[*_`~#>]+")
	mdHeadingRe = regexp.MustCompile(`(?m)^\s*#{1,6}\s*`)
)

// sanitizeContent 把 Markdown 降为纯文本并截断到卡片可容纳的长度。
func sanitizeContent(text string) string {
	plain := mdHeadingRe.ReplaceAllString(text, "")
	plain = mdLinkRe.ReplaceAllString(plain, "$1")
	plain = mdMarkupRe.ReplaceAllString(plain, "")
	plain = strings.TrimSpace(plain)

	runes := []rune(plain)
	if len(runes) > maxRunes {
		plain = string(runes[:maxRunes]) + "..."
	}
	return plain
}
