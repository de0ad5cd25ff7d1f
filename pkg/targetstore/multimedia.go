// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package targetstore

import (
	"context"
	"time"

	"github.com/sylos-labs/catalog-migrator/pkg/migrationerr"
	"github.com/sylos-labs/catalog-migrator/pkg/targetmodel"
)

// Multimedia satisfies multimedia.Store against the redesigned target store.
type Multimedia struct {
	pool *Pool
}

// NewMultimedia constructs a Multimedia store.
func NewMultimedia(pool *Pool) *Multimedia {
	return &Multimedia{pool: pool}
}

func (s *Multimedia) ExistingForProduct(ctx context.Context, productID string) ([]targetmodel.Multimedia, error) {
	const query = `
		SELECT id, product_id, url, original_url, type, extracted, created_at, updated_at
		FROM multimedia WHERE product_id = $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, migrationerr.TransientStore("targetstore.Multimedia.ExistingForProduct", err)
	}
	defer rows.Close()

	var out []targetmodel.Multimedia
	for rows.Next() {
		var m targetmodel.Multimedia
		if err := rows.Scan(&m.ID, &m.ProductID, &m.URL, &m.OriginalURL, &m.Type, &m.Extracted, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, migrationerr.TransientStore("targetstore.Multimedia.ExistingForProduct", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, migrationerr.TransientStore("targetstore.Multimedia.ExistingForProduct", err)
	}
	return out, nil
}

func (s *Multimedia) UpdateURL(ctx context.Context, id, originalURL string, now time.Time) error {
	const query = `UPDATE multimedia SET original_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id, originalURL, now); err != nil {
		return migrationerr.TargetWriteConflict("targetstore.Multimedia.UpdateURL", err)
	}
	return nil
}

func (s *Multimedia) Insert(ctx context.Context, m targetmodel.Multimedia) error {
	const query = `
		INSERT INTO multimedia (id, product_id, url, original_url, type, extracted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := s.pool.Exec(ctx, query, m.ID, m.ProductID, m.URL, m.OriginalURL, m.Type, m.Extracted, m.CreatedAt, m.UpdatedAt); err != nil {
		return migrationerr.TargetWriteConflict("targetstore.Multimedia.Insert", err)
	}
	return nil
}
