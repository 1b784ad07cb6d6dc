package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/shopdex-io/shopdex/internal/domain"
)

// NearestByVector runs a KNN similarity search via FT.SEARCH.
func (s *Store) NearestByVector(ctx context.Context, vec []float32, k int) ([]domain.VectorHit, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $BLOB]", k)
	args := []string{
		s.index, queryStr,
		"RETURN", "2", "product_id", "__vector_score",
		"SORTBY", "__vector_score",
		"PARAMS", "2", "BLOB", string(vectorToBytes(vec)),
		"DIALECT", "2",
	}

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	return parseHits(raw)
}

// KeywordLike runs a text-field search on the index as a non-semantic
// fallback when query embedding fails but the index itself is healthy.
func (s *Store) KeywordLike(ctx context.Context, term string, k int) ([]domain.VectorHit, error) {
	if term == "" {
		return nil, fmt.Errorf("term is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	queryStr := "@text:(" + escapeQuery(term) + ")"
	args := []string{
		s.index, queryStr,
		"RETURN", "1", "product_id",
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	}

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	return parseHits(raw)
}

// parseHits decodes the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func parseHits(raw []rueidis.RedisMessage) ([]domain.VectorHit, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	hits := make([]domain.VectorHit, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		var hit domain.VectorHit
		hasID := false
		for j := 0; j+1 < len(fields); j += 2 {
			name, err := fields[j].ToString()
			if err != nil {
				continue
			}
			val, err := fields[j+1].ToString()
			if err != nil {
				continue
			}
			switch name {
			case "product_id":
				if id, err := strconv.ParseInt(val, 10, 64); err == nil {
					hit.ProductID = id
					hasID = true
				}
			case "__vector_score":
				if d, err := strconv.ParseFloat(val, 64); err == nil {
					hit.Distance = d
				}
			}
		}
		if hasID {
			hits = append(hits, hit)
		}
	}

	return hits, nil
}

// vectorToBytes encodes float32 values as little-endian bytes for FT.SEARCH PARAMS.
func vectorToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// escapeQuery strips RediSearch syntax characters from user text.
var querySpecials = strings.NewReplacer(
	"@", " ", "{", " ", "}", " ", "(", " ", ")", " ",
	"|", " ", "-", " ", "=", " ", ">", " ", "<", " ",
	"[", " ", "]", " ", `"`, " ", "'", " ", "~", " ",
	"*", " ", ":", " ", ";", " ", "$", " ", "%", " ",
)

func escapeQuery(q string) string {
	return strings.TrimSpace(querySpecials.Replace(q))
}
