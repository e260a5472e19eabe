package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
)

// pngMagic 是 PNG 文件头。
var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// IsPNG 只看文件头判断是否为 PNG。
func IsPNG(b []byte) bool {
	return bytes.HasPrefix(b, pngMagic)
}

// NormalizeCoverJPEG 让封面内容与 .jpg 扩展名一致。
//
// 规则：
// - PNG：解码后重新编码为 JPEG（透明区域铺白底），converted=true
// - 其它（JPEG、未知格式）：原样返回，converted=false
// - 空输入：报错
func NormalizeCoverJPEG(b []byte) (out []byte, converted bool, err error) {
	if len(b) == 0 {
		return nil, false, errors.New("封面为空")
	}
	if !IsPNG(b) {
		return b, false, nil
	}

	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, false, err
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, false, errors.New("图片尺寸无效")
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 95}); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}
