package workspace

import "errors"

var (
	// ErrInvalidDialog は未知のダイアログ種別が指定された場合に返却されます。
	ErrInvalidDialog = errors.New("workspace: invalid dialog")
	// ErrSelectionRequired は対象の記録が必要なダイアログで記録が指定されていない場合に返却されます。
	ErrSelectionRequired = errors.New("workspace: selection required")
	// ErrSessionNotFound はセッションが存在しないか期限切れの場合に返却されます。
	ErrSessionNotFound = errors.New("workspace: session not found")
)
