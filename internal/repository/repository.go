package repository

import (
	"context"

	"github.com/tinychef/UserData/internal/model"
)

// SourceRepository reads one named data export as a list of raw records.
//
// Implementations report a missing export with apperror.ErrSourceMissing
// and an undecodable one with apperror.ErrSourceMalformed.
type SourceRepository interface {
	Load(ctx context.Context, name string) ([]model.RawRecord, error)
}
