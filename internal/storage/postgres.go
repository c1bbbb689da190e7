/**
 * PostgreSQL Block Store for the OCR highlight worker
 *
 * Reads the OCR block hierarchy persisted by the fileprocess pipeline.
 * Serves as the block-fetch collaborator for the highlight block cache.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	herrors "github.com/adverant/nexus/ocr-highlight-worker/internal/errors"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
	"github.com/lib/pq"
)

// PostgresBlockStore handles block reads from PostgreSQL
type PostgresBlockStore struct {
	db *sql.DB
}

// matchableBlockTypes is the block-type filter applied to every fetch.
var matchableBlockTypes = []string{
	string(ocr.BlockTypePage),
	string(ocr.BlockTypeLine),
	string(ocr.BlockTypeWord),
}

const fetchBlocksQuery = `
	SELECT
		id,
		block_type,
		confidence,
		COALESCE(text, ''),
		geometry,
		COALESCE(relationships, '[]'::jsonb),
		page
	FROM fileprocess.ocr_blocks
	WHERE organization_id = $1::uuid
		AND document_id = $2::uuid
		AND block_type = ANY($3)
	ORDER BY page, block_index
`

// NewPostgresBlockStore creates a new PostgreSQL block store
func NewPostgresBlockStore(databaseURL string) (*PostgresBlockStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresBlockStoreFromDB(db), nil
}

// NewPostgresBlockStoreFromDB wraps an already opened database handle
func NewPostgresBlockStoreFromDB(db *sql.DB) *PostgresBlockStore {
	return &PostgresBlockStore{db: db}
}

// FetchBlocks returns every block of a document in page order
func (p *PostgresBlockStore) FetchBlocks(ctx context.Context, orgID, docID string) ([]ocr.Block, error) {
	if orgID == "" || docID == "" {
		return nil, fmt.Errorf("organization ID and document ID are required")
	}

	rows, err := p.db.QueryContext(ctx, fetchBlocksQuery, orgID, docID, pq.Array(matchableBlockTypes))
	if err != nil {
		return nil, fmt.Errorf("failed to query OCR blocks (org=%s, doc=%s): %w", orgID, docID, err)
	}
	defer rows.Close()

	var blocks []ocr.Block
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate OCR blocks: %w", err)
	}

	return blocks, nil
}

// blockRow is one ocr_blocks row before its JSONB columns are decoded.
type blockRow struct {
	id                string
	blockType         string
	confidence        float64
	text              string
	geometryJSON      []byte
	relationshipsJSON []byte
	page              int
}

func scanBlock(rows *sql.Rows) (ocr.Block, error) {
	var row blockRow
	if err := rows.Scan(
		&row.id,
		&row.blockType,
		&row.confidence,
		&row.text,
		&row.geometryJSON,
		&row.relationshipsJSON,
		&row.page,
	); err != nil {
		return ocr.Block{}, fmt.Errorf("failed to scan OCR block: %w", err)
	}
	return row.decode()
}

func (r blockRow) decode() (ocr.Block, error) {
	block := ocr.Block{
		ID:         r.id,
		BlockType:  ocr.BlockType(r.blockType),
		Confidence: r.confidence,
		Text:       r.text,
		Page:       r.page,
	}
	if err := json.Unmarshal(r.geometryJSON, &block.Geometry); err != nil {
		return ocr.Block{}, herrors.NewBlockDecodeError("postgres",
			fmt.Errorf("block %s geometry: %w", r.id, err))
	}

	if err := block.Validate(); err != nil {
		return ocr.Block{}, herrors.NewBlockDecodeError("postgres", err)
	}

	if len(r.relationshipsJSON) > 0 {
		if err := json.Unmarshal(r.relationshipsJSON, &block.Relationships); err != nil {
			return ocr.Block{}, herrors.NewBlockDecodeError("postgres",
				fmt.Errorf("block %s relationships: %w", r.id, err))
		}
	}
	if len(block.Relationships) == 0 {
		block.Relationships = nil
	}

	return block, nil
}

// Ping checks database connectivity
func (p *PostgresBlockStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresBlockStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresBlockStore) GetStats() sql.DBStats {
	return p.db.Stats()
}
