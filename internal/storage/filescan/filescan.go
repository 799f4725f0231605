// Пакет filescan - операции с исходными файлами на локальном диске:
// определение Content-Type по расширению и подсчёт MD5 и размера
// потоковым чтением (файл целиком в память не загружается).
package filescan

import (
	"crypto/md5" //nolint:gosec // MD5 - детектор изменений, не криптографическая граница
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/LadnoSam/data-query-lib/internal/domain/model"
)

// Распознаваемые расширения. Сравнение регистрозависимое.
var contentTypes = map[string]string{
	".json": "application/json",
	".csv":  "text/csv",
}

// Classify возвращает Content-Type файла по расширению.
// ok = false, если расширение не распознано или путь не является
// существующим обычным файлом. Не считается ошибкой.
func Classify(path string) (contentType string, ok bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}

	contentType, ok = contentTypes[filepath.Ext(path)]
	return contentType, ok
}

// Digest читает файл потоком и возвращает MD5 (hex, нижний регистр) и размер.
func Digest(path string) (model.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Digest{}, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	return DigestReader(f)
}

// DigestReader считает MD5 и количество байт из произвольного потока.
func DigestReader(r io.Reader) (model.Digest, error) {
	hasher := md5.New() //nolint:gosec // см. импорт
	size, err := io.Copy(hasher, r)
	if err != nil {
		return model.Digest{}, fmt.Errorf("ошибка чтения данных: %w", err)
	}

	return model.Digest{
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
		Size:     size,
	}, nil
}
