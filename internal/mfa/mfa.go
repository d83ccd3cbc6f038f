// Package mfa implements the optional QR/OCR capabilities spec.md §6.3
// names: decoding a TOTP QR code off a page screenshot and OCR-reading an
// element's screenshot. Grounded on AGiXT's handle_mfa_with_playwright
// (pyzbar + pyotp) and extract_text_from_image_with_playwright
// (pytesseract); ported to gozxing, pquerna/otp, and gosseract since the
// pack carries no direct Go analogues of those Python libraries.
package mfa

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/otiai10/gosseract/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpURIPattern matches the otpauth://totp/... payload spec.md §4.3 looks
// for in a decoded QR code.
var totpURIPattern = regexp.MustCompile(`(?i)^otpauth://totp/`)

// QRDecoder is the DecodeQR capability spec.md §6.3 describes.
type QRDecoder interface {
	DecodeQR(pngBytes []byte) ([]string, error)
}

// OCREngine is the OCR capability spec.md §6.3 describes.
type OCREngine interface {
	OCR(pngBytes []byte) (string, error)
}

// TOTPGenerator produces the current TOTP code for a shared secret.
type TOTPGenerator interface {
	Generate(secret string) (string, error)
}

// ZXingDecoder decodes QR codes with gozxing.
type ZXingDecoder struct{}

// NewZXingDecoder builds the default QRDecoder.
func NewZXingDecoder() *ZXingDecoder { return &ZXingDecoder{} }

// DecodeQR attempts to decode exactly one QR code from the image bytes.
// gozxing only exposes single-symbol decode, which matches how AGiXT's
// MFA flow is used in practice (one QR code per page).
func (z *ZXingDecoder) DecodeQR(pngBytes []byte) ([]string, error) {
	img, _, err := image.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("mfa: decode screenshot image: %w", err)
	}
	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("mfa: build binary bitmap: %w", err)
	}
	reader := qrcode.NewQRCodeReader()
	result, err := reader.Decode(bitmap, nil)
	if err != nil {
		return nil, fmt.Errorf("mfa: no QR code found: %w", err)
	}
	return []string{result.GetText()}, nil
}

// TesseractOCR reads text out of an image with gosseract (a cgo binding
// over tesseract, mirroring pytesseract's role in the original source).
type TesseractOCR struct{}

// NewTesseractOCR builds the default OCREngine.
func NewTesseractOCR() *TesseractOCR { return &TesseractOCR{} }

func (t *TesseractOCR) OCR(pngBytes []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImageFromBytes(pngBytes); err != nil {
		return "", fmt.Errorf("mfa: set ocr image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("mfa: ocr: %w", err)
	}
	return text, nil
}

// PQuernaTOTP generates RFC 6238 codes with pquerna/otp.
type PQuernaTOTP struct{}

// NewPQuernaTOTP builds the default TOTPGenerator.
func NewPQuernaTOTP() *PQuernaTOTP { return &PQuernaTOTP{} }

func (p *PQuernaTOTP) Generate(secret string) (string, error) {
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		return "", fmt.Errorf("mfa: generate totp: %w", err)
	}
	return code, nil
}

// ExtractTOTPSecret finds the first otpauth://totp/ payload among decoded
// QR strings and returns its secret parameter.
func ExtractTOTPSecret(payloads []string) (string, error) {
	for _, p := range payloads {
		if !totpURIPattern.MatchString(p) {
			continue
		}
		key, err := otp.NewKeyFromURL(p)
		if err != nil {
			continue
		}
		if secret := key.Secret(); secret != "" {
			return secret, nil
		}
	}
	return "", fmt.Errorf("mfa: no otpauth://totp/ payload with a secret found")
}
