package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when key does not exist.
var ErrNotFound = errors.New("storage: not found")

// Storage はエクスポートした vCard ファイルの保存・取得・削除を抽象化するインターフェース。
// ローカルファイルシステム実装の他、S3 互換ストレージに差し替え可能。
type Storage interface {
	// Save はファイルを保存し、参照用 URL を返す。
	// key はストレージ内の一意パス (例: "exports/contacts_export-<ts>-<uuid>.vcf")。
	Save(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)

	// Open は key に対応するファイルを読み出す。呼び出し側で Close すること。
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete は key に対応するファイルを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}
