package document

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText extracts the plain text of every page, separated by blank lines.
// Pages whose content streams cannot be decoded are skipped.
func pdfText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if t := pageText(r.Page(i)); strings.TrimSpace(t) != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func pageText(p pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	if p.V.IsNull() {
		return ""
	}
	t, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return t
}

// pdfImages collects image XObjects. Flate-encoded RGB and grayscale images
// are re-encoded as PNG; DCT (JPEG) streams cannot be read raw through the
// parser, so they are recovered from the file bytes by marker scan.
func pdfImages(path string) (imgs []Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			imgs, err = nil, fmt.Errorf("%w: parse pdf: %v", ErrUnreadable, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sawDCT := false
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		xobj := p.Resources().Key("XObject")
		for _, name := range xobj.Keys() {
			v := xobj.Key(name)
			if v.Key("Subtype").Name() != "Image" {
				continue
			}
			switch filterName(v) {
			case "DCTDecode":
				sawDCT = true
			case "FlateDecode", "":
				if img, ok := decodeRaster(v); ok {
					imgs = append(imgs, Image{Page: i, Name: name, MIMEType: "image/png", Data: img})
				}
			}
		}
	}

	if sawDCT {
		raw, err := os.ReadFile(path)
		if err == nil {
			for n, j := range scanJPEGs(raw) {
				imgs = append(imgs, Image{Name: fmt.Sprintf("jpeg-%d", n+1), MIMEType: "image/jpeg", Data: j})
			}
		}
	}
	return imgs, nil
}

func filterName(v pdf.Value) string {
	flt := v.Key("Filter")
	if flt.Kind() == pdf.Array {
		if flt.Len() == 0 {
			return ""
		}
		return flt.Index(0).Name()
	}
	return flt.Name()
}

// decodeRaster converts an 8-bit RGB or gray image stream to PNG.
func decodeRaster(v pdf.Value) (out []byte, ok bool) {
	defer func() {
		if recover() != nil {
			out, ok = nil, false
		}
	}()
	w, h := int(v.Key("Width").Int64()), int(v.Key("Height").Int64())
	if w <= 0 || h <= 0 || v.Key("BitsPerComponent").Int64() != 8 {
		return nil, false
	}
	rc := v.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false
	}

	var img image.Image
	switch v.Key("ColorSpace").Name() {
	case "DeviceRGB":
		if len(data) < w*h*3 {
			return nil, false
		}
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < w*h; i++ {
			rgba.Set(i%w, i/w, color.RGBA{data[3*i], data[3*i+1], data[3*i+2], 0xff})
		}
		img = rgba
	case "DeviceGray":
		if len(data) < w*h {
			return nil, false
		}
		gray := image.NewGray(image.Rect(0, 0, w, h))
		copy(gray.Pix, data[:w*h])
		img = gray
	default:
		return nil, false
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

var (
	jpegStart = []byte{0xFF, 0xD8, 0xFF}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// scanJPEGs returns every SOI..EOI byte range in data.
func scanJPEGs(data []byte) [][]byte {
	var out [][]byte
	for {
		i := bytes.Index(data, jpegStart)
		if i < 0 {
			return out
		}
		data = data[i:]
		j := bytes.Index(data[len(jpegStart):], jpegEnd)
		if j < 0 {
			return out
		}
		end := len(jpegStart) + j + len(jpegEnd)
		out = append(out, data[:end])
		data = data[end:]
	}
}
