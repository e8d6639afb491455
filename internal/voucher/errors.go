package voucher

import "errors"

var (
	ErrNilVoucher        = errors.New("voucher is nil")
	ErrEmptyDocument     = errors.New("document has no pages")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
