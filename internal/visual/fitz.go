package visual

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

const baseDPI = 72

// FitzRenderer rasterizes PDF pages with MuPDF. Each page yields a
// whole-page overview at modest zoom and three horizontal slices at
// high zoom, so vision models can read fine print and part labels
// that a single full-page image would blur.
type FitzRenderer struct {
	OverviewZoom float64
	SliceZoom    float64
}

func NewFitzRenderer(overviewZoom, sliceZoom float64) *FitzRenderer {
	if overviewZoom <= 0 {
		overviewZoom = 1.0
	}
	if sliceZoom <= 0 {
		sliceZoom = 3.0
	}
	return &FitzRenderer{OverviewZoom: overviewZoom, SliceZoom: sliceZoom}
}

func (r *FitzRenderer) RenderPage(path string, page int) ([]Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, nil
	}

	overview, err := doc.ImageDPI(page-1, baseDPI*r.OverviewZoom)
	if err != nil {
		return nil, fmt.Errorf("rendering page %d: %w", page, err)
	}

	images := make([]Image, 0, 4)
	encoded, err := encodePNG(overview)
	if err != nil {
		return nil, err
	}
	images = append(images, Image{Label: "overview", PNG: encoded})

	zoomed, err := doc.ImageDPI(page-1, baseDPI*r.SliceZoom)
	if err != nil {
		return nil, fmt.Errorf("rendering page %d at high zoom: %w", page, err)
	}

	for _, s := range slice3(zoomed) {
		encoded, err := encodePNG(s.img)
		if err != nil {
			return nil, err
		}
		images = append(images, Image{Label: s.label, PNG: encoded})
	}
	return images, nil
}

type labeledImage struct {
	label string
	img   image.Image
}

// slice3 cuts an image into overlapping top, center and bottom bands.
// The overlap keeps content on band boundaries readable in at least
// one slice.
func slice3(img image.Image) []labeledImage {
	b := img.Bounds()
	h := b.Dy()
	band := h / 2
	if band == 0 {
		return []labeledImage{{label: "center", img: img}}
	}

	crop := func(y0, y1 int) image.Image {
		rect := image.Rect(b.Min.X, y0, b.Max.X, y1)
		if sub, ok := img.(interface {
			SubImage(image.Rectangle) image.Image
		}); ok {
			return sub.SubImage(rect)
		}
		return img
	}

	return []labeledImage{
		{label: "top", img: crop(b.Min.Y, b.Min.Y+band)},
		{label: "center", img: crop(b.Min.Y+h/4, b.Min.Y+h/4+band)},
		{label: "bottom", img: crop(b.Max.Y-band, b.Max.Y)},
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

var _ Renderer = (*FitzRenderer)(nil)
