// Пакет model - доменные модели data-query.
// FileMetadata - единственная сущность: строка таблицы метаданных
// и одновременно набор user-метаданных объекта в бакете.
package model

import (
	"strconv"
	"time"
)

// DefaultOwner - владелец, записываемый во все строки метаданных.
const DefaultOwner = "admin"

// Ключи user-метаданных объекта. Совпадают с именами столбцов по умолчанию.
const (
	KeyBucketName            = "bucket_name"
	KeyStorageAddress        = "storage_address"
	KeyOwner                 = "owner"
	KeyFileName              = "file_name"
	KeyFileSize              = "file_size"
	KeyUploadTimestamp       = "upload_timestamp"
	KeyHashChecksum          = "hash_checksum"
	KeyLastModifiedTimestamp = "last_modified_timestamp"
	KeyContentType           = "content_type"
)

// FileMetadata - метаданные одного загруженного файла.
type FileMetadata struct {
	// BucketName - бакет объектного хранилища (фиксирован для инсталляции)
	BucketName string
	// StorageAddress - bucket/file_name, уникальный ключ upsert
	StorageAddress string
	// Owner - владелец (константа DefaultOwner)
	Owner string
	// FileName - базовое имя файла в исходной директории
	FileName string
	// FileSize - размер в байтах (в таблице хранится строкой)
	FileSize int64
	// UploadTimestamp - время первой загрузки; при конфликте не перезаписывается
	UploadTimestamp time.Time
	// HashChecksum - MD5 содержимого, пересчитывается при каждом запуске
	HashChecksum string
	// LastModifiedTimestamp - время последнего запуска ингеста
	LastModifiedTimestamp time.Time
	// ContentType - MIME-тип, определённый по расширению
	ContentType string
}

// FileSizeString возвращает размер в том виде, в котором он хранится в таблице.
func (m *FileMetadata) FileSizeString() string {
	return strconv.FormatInt(m.FileSize, 10)
}

// ObjectMetadata возвращает user-метаданные для объекта в бакете.
// Все значения - строки, время в RFC 3339 (UTC).
func (m *FileMetadata) ObjectMetadata() map[string]string {
	return map[string]string{
		KeyBucketName:            m.BucketName,
		KeyStorageAddress:        m.StorageAddress,
		KeyOwner:                 m.Owner,
		KeyFileName:              m.FileName,
		KeyFileSize:              m.FileSizeString(),
		KeyUploadTimestamp:       formatTimestamp(m.UploadTimestamp),
		KeyHashChecksum:          m.HashChecksum,
		KeyLastModifiedTimestamp: formatTimestamp(m.LastModifiedTimestamp),
		KeyContentType:           m.ContentType,
	}
}

// Digest - контрольная сумма и размер содержимого файла.
type Digest struct {
	// Checksum - MD5 в нижнем регистре (hex)
	Checksum string
	// Size - длина содержимого в байтах
	Size int64
}

// BuildParams - входные данные сборки метаданных.
type BuildParams struct {
	Bucket      string
	FileName    string
	Owner       string
	Digest      Digest
	ContentType string
	// Now - единая отметка времени для upload и last_modified
	Now time.Time
}

// BuildFileMetadata собирает запись метаданных. Чистая функция без I/O.
func BuildFileMetadata(p BuildParams) *FileMetadata {
	owner := p.Owner
	if owner == "" {
		owner = DefaultOwner
	}
	now := p.Now.UTC()

	return &FileMetadata{
		BucketName:            p.Bucket,
		StorageAddress:        StorageAddress(p.Bucket, p.FileName),
		Owner:                 owner,
		FileName:              p.FileName,
		FileSize:              p.Digest.Size,
		UploadTimestamp:       now,
		HashChecksum:          p.Digest.Checksum,
		LastModifiedTimestamp: now,
		ContentType:           p.ContentType,
	}
}

// StorageAddress возвращает адрес объекта: bucket/file_name.
func StorageAddress(bucket, fileName string) string {
	return bucket + "/" + fileName
}

// FileSummary - строка результата поиска (проекция file_name, upload_timestamp, content_type).
type FileSummary struct {
	FileName        string
	UploadTimestamp time.Time
	ContentType     string
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
