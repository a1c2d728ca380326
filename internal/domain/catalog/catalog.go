// Пакет catalog — проверка идентификаторов и форматов музыкального каталога:
// ISRC треков, UPC релизов, допустимые аудиоформаты и изображения.
package catalog

import (
	"path/filepath"
	"strings"
)

// AudioFormats — допустимые форматы аудио (расширение без точки).
var AudioFormats = []string{"mp3", "wav", "flac", "aac", "m4a", "ogg"}

// ImageFormats — допустимые форматы обложек и аватаров.
var ImageFormats = []string{"jpg", "jpeg", "png", "webp"}

// NormalizeISRC убирает дефисы и пробелы, приводит к верхнему регистру.
// "us-rc1-17-00001" → "USRC11700001".
func NormalizeISRC(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", " ", "").Replace(s)
}

// ValidISRC проверяет нормализованный ISRC: CC XXX YY NNNNN, ровно 12 символов.
// Код страны — две буквы, регистрант — три буквы или цифры,
// год — две цифры, номер — пять цифр.
func ValidISRC(isrc string) bool {
	if len(isrc) != 12 {
		return false
	}
	for i := 0; i < 12; i++ {
		c := isrc[i]
		switch {
		case i < 2:
			if !isUpper(c) {
				return false
			}
		case i < 5:
			if !isUpper(c) && !isDigit(c) {
				return false
			}
		default:
			if !isDigit(c) {
				return false
			}
		}
	}
	return true
}

// ValidUPC проверяет UPC-A (12 цифр) или EAN-13 (13 цифр) вместе с контрольной цифрой.
func ValidUPC(upc string) bool {
	if len(upc) != 12 && len(upc) != 13 {
		return false
	}
	sum := 0
	// Веса 3 и 1 чередуются справа налево, начиная с цифры перед контрольной.
	for i := len(upc) - 2; i >= 0; i-- {
		c := upc[i]
		if !isDigit(c) {
			return false
		}
		d := int(c - '0')
		if (len(upc)-2-i)%2 == 0 {
			d *= 3
		}
		sum += d
	}
	last := upc[len(upc)-1]
	if !isDigit(last) {
		return false
	}
	return (10-sum%10)%10 == int(last-'0')
}

// IsAudioFormat проверяет формат аудио (без учёта регистра).
func IsAudioFormat(format string) bool {
	return contains(AudioFormats, strings.ToLower(format))
}

// Ext возвращает расширение имени файла без точки в нижнем регистре.
func Ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsAudioFile проверяет расширение аудиофайла.
func IsAudioFile(filename string) bool {
	return contains(AudioFormats, Ext(filename))
}

// IsImageFile проверяет расширение изображения.
func IsImageFile(filename string) bool {
	return contains(ImageFormats, Ext(filename))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
