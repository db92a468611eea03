package persistence

import (
	"EstateGuru/internal/modules/estate/domain/property"
	"EstateGuru/internal/modules/estate/domain/rag"
	"EstateGuru/internal/modules/estate/domain/repository"
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&property.Property{}, &rag.KnowledgeSource{}))
	return db
}

// 两种实现必须给出相同的过滤结果
func catalogs(t *testing.T) map[string]repository.PropertyCatalog {
	gormCatalog := NewPropertyRepository(newTestDB(t))
	require.NoError(t, gormCatalog.Upsert(context.Background(), DemoProperties()))
	return map[string]repository.PropertyCatalog{
		"memory": NewMemoryCatalog(DemoProperties()...),
		"gorm":   gormCatalog,
	}
}

func ids(items []property.Summary) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.PropertyID)
	}
	return out
}

func TestCatalogSearch(t *testing.T) {
	cases := []struct {
		name   string
		filter property.SearchFilter
		want   []string
	}{
		{"locality substring", property.SearchFilter{Locality: "wak", TransactionType: "sale"}, []string{"PROP-WAK-001", "PROP-WAK-002"}},
		{"rent under budget", property.SearchFilter{TransactionType: "rent", MaxPrice: ptrF(25000)}, []string{"PROP-WAK-001-R", "PROP-HIN-001-R"}},
		{"buy maps to sale", property.SearchFilter{TransactionType: "buy", Bedrooms: ptrI(3)}, []string{"PROP-WAK-002"}},
		{"price window", property.SearchFilter{TransactionType: "sale", MinPrice: ptrF(7700000), MaxPrice: ptrF(8600000)}, []string{"PROP-BAN-001", "PROP-KHA-001"}},
		{"furnishing", property.SearchFilter{Furnishing: "Furnished"}, []string{"PROP-BAN-001", "PROP-BAN-001-R"}},
		{"no match", property.SearchFilter{Locality: "Kothrud"}, []string{}},
		{"limit", property.SearchFilter{Limit: 3}, []string{"PROP-WAK-001", "PROP-WAK-001-R", "PROP-WAK-002"}},
	}
	for name, c := range catalogs(t) {
		for _, tc := range cases {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				got, err := c.Search(context.Background(), tc.filter)
				require.NoError(t, err)
				assert.Equal(t, tc.want, ids(got))
			})
		}
	}
}

func TestCatalogDefaultLimit(t *testing.T) {
	for name, c := range catalogs(t) {
		got, err := c.Search(context.Background(), property.SearchFilter{})
		require.NoError(t, err, name)
		assert.Len(t, got, defaultSearchLimit, name)
	}
}

func TestCatalogGetAndUpsert(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		p, err := c.Get(ctx, "PROP-KHA-001")
		require.NoError(t, err, name)
		assert.Equal(t, "Skyline Orchid", p.Title)

		p.Price = 7000000
		require.NoError(t, c.Upsert(ctx, []*property.Property{p}), name)
		again, err := c.Get(ctx, "PROP-KHA-001")
		require.NoError(t, err, name)
		assert.Equal(t, 7000000.0, again.Price, name)

		_, err = c.Get(ctx, "PROP-NONE")
		assert.ErrorIs(t, err, repository.ErrNotFound, name)
	}
}

func TestSourceRepositories(t *testing.T) {
	ctx := context.Background()
	repos := map[string]repository.SourceRepository{
		"memory": NewMemorySourceRepository(),
		"gorm":   NewSourceRepository(newTestDB(t)),
	}
	for name, r := range repos {
		require.NoError(t, r.Upsert(ctx, &rag.KnowledgeSource{SourceID: "s1", Filename: "wakad.txt", ChunkCount: 3, Status: rag.SourceStatusActive}), name)
		require.NoError(t, r.Upsert(ctx, &rag.KnowledgeSource{SourceID: "s2", Filename: "baner.txt", ChunkCount: 1, Status: rag.SourceStatusActive}), name)
		require.NoError(t, r.Upsert(ctx, &rag.KnowledgeSource{SourceID: "s1", Filename: "wakad.txt", ChunkCount: 5, Status: rag.SourceStatusActive}), name)

		got, err := r.Get(ctx, "s1")
		require.NoError(t, err, name)
		assert.Equal(t, 5, got.ChunkCount, name)

		all, err := r.List(ctx)
		require.NoError(t, err, name)
		require.Len(t, all, 2, name)
		assert.Equal(t, "s1", all[0].SourceID, name)

		_, err = r.Get(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound, name)
	}
}
