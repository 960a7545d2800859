package person

import "errors"

var (
	// ErrPersonNotFound は職員が存在しない場合に返却されます。
	ErrPersonNotFound = errors.New("person not found")
	// ErrFileNumberAlreadyExists は職員番号が重複した場合に返却されます。
	ErrFileNumberAlreadyExists = errors.New("file number already exists")
	// ErrInvalidFileNumber は職員番号が不正な場合に返却されます。
	ErrInvalidFileNumber = errors.New("invalid file number")
	// ErrInvalidEmail はメールアドレスが不正な場合に返却されます。
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidName は氏名が不正な場合に返却されます。
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidStatus はステータスが不正な場合に返却されます。
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidID は ID が不正な場合に返却されます。
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidPageSize はページサイズが不正な場合に返却されます。
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrInvalidPageToken はページトークンが不正な場合に返却されます。
	ErrInvalidPageToken = errors.New("invalid page token")
)
