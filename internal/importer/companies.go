package importer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ignite/contact-core/internal/domain"
	"github.com/ignite/contact-core/internal/store"
)

// NormalizeCompanyName lowercases and trims a raw company name for use as
// the unique key.
func NormalizeCompanyName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ResolveCompanies maps raw company names to company documents, creating
// the missing ones in one unordered bulk upsert. Concurrent imports racing
// on the same name are safe: the upsert is keyed by normalized_name, which
// carries a unique index, so exactly one document wins.
func ResolveCompanies(ctx context.Context, s *store.Store, rawNames []string) (map[string]domain.Company, error) {
	normalized := make([]string, 0, len(rawNames))
	displayByNorm := make(map[string]string, len(rawNames))
	for _, raw := range rawNames {
		norm := NormalizeCompanyName(raw)
		if norm == "" {
			continue
		}
		if _, seen := displayByNorm[norm]; !seen {
			displayByNorm[norm] = strings.TrimSpace(raw)
			normalized = append(normalized, norm)
		}
	}
	if len(normalized) == 0 {
		return map[string]domain.Company{}, nil
	}

	resolved := make(map[string]domain.Company, len(normalized))
	if err := fetchCompanies(ctx, s, normalized, resolved); err != nil {
		return nil, err
	}

	var models []mongo.WriteModel
	var missing []string
	now := time.Now().UTC()
	for _, norm := range normalized {
		if _, ok := resolved[norm]; ok {
			continue
		}
		missing = append(missing, norm)
		doc := domain.Company{
			ID:             uuid.New().String(),
			Name:           displayByNorm[norm],
			NormalizedName: norm,
			Classification: "outbound",
			IsActive:       true,
			Aliases:        []string{},
			Domains:        []string{},
			Source:         domain.CompanySourceLinkedInImport,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"normalized_name": norm}).
			SetUpdate(bson.M{"$setOnInsert": doc}).
			SetUpsert(true))
	}

	if len(models) > 0 {
		if _, err := s.BulkWriteUnordered(ctx, store.CollCompanies, models); err != nil {
			if !store.IsPartialBulkError(err) {
				return nil, fmt.Errorf("company bulk upsert: %w", err)
			}
			log.Printf("[Importer] partial failure creating companies: %v", err)
		}
		// Fetch what the upserts (ours or a racing worker's) created.
		if err := fetchCompanies(ctx, s, missing, resolved); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}

func fetchCompanies(ctx context.Context, s *store.Store, normalizedNames []string, into map[string]domain.Company) error {
	if len(normalizedNames) == 0 {
		return nil
	}
	cur, err := s.Companies().Find(ctx, bson.M{"normalized_name": bson.M{"$in": normalizedNames}})
	if err != nil {
		return fmt.Errorf("company lookup: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var company domain.Company
		if err := cur.Decode(&company); err != nil {
			return err
		}
		into[company.NormalizedName] = company
	}
	return cur.Err()
}
