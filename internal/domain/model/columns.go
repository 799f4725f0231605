package model

import (
	"fmt"
	"regexp"
)

// Columns - маппинг семантических полей FileMetadata на имена столбцов таблицы.
// Каждое поле именовано явно: порядок объявления в конфигурации не влияет на маппинг.
type Columns struct {
	BucketName            string
	StorageAddress        string
	Owner                 string
	FileName              string
	FileSize              string
	UploadTimestamp       string
	HashChecksum          string
	LastModifiedTimestamp string
	ContentType           string
}

// DefaultColumns возвращает имена столбцов, создаваемые миграцией.
func DefaultColumns() Columns {
	return Columns{
		BucketName:            KeyBucketName,
		StorageAddress:        KeyStorageAddress,
		Owner:                 KeyOwner,
		FileName:              KeyFileName,
		FileSize:              KeyFileSize,
		UploadTimestamp:       KeyUploadTimestamp,
		HashChecksum:          KeyHashChecksum,
		LastModifiedTimestamp: KeyLastModifiedTimestamp,
		ContentType:           KeyContentType,
	}
}

// Ordered возвращает имена столбцов в порядке вставки (совпадает с порядком полей FileMetadata).
func (c Columns) Ordered() []string {
	return []string{
		c.BucketName,
		c.StorageAddress,
		c.Owner,
		c.FileName,
		c.FileSize,
		c.UploadTimestamp,
		c.HashChecksum,
		c.LastModifiedTimestamp,
		c.ContentType,
	}
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Validate проверяет, что все имена - допустимые идентификаторы и не повторяются.
func (c Columns) Validate() error {
	seen := make(map[string]bool, 9)
	for _, name := range c.Ordered() {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
		if seen[name] {
			return fmt.Errorf("столбец %q указан более одного раза", name)
		}
		seen[name] = true
	}
	return nil
}

// ValidateIdentifier проверяет имя таблицы или столбца.
func ValidateIdentifier(name string) error {
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("недопустимый идентификатор %q", name)
	}
	return nil
}
