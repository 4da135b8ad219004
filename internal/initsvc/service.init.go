// Package initsvc khởi tạo các thành phần hợp nhất dùng chung cho server và CLI:
// catalog job, lịch sử run, metrics, runner và index MongoDB.
package initsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mloperacde/cdeapp-planning-sub010/config"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/database"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/metrics"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/reconcile"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store/mongostore"
)

// Services là các thành phần đã được nối dây theo cấu hình
type Services struct {
	Store    store.Store
	Catalog  *reconcile.Catalog
	History  *reconcile.History        // nil khi RECONCILE_RUNS_COLLECTION rỗng
	Metrics  *metrics.ReconcileMetrics // nil khi không có registry
	Registry *prometheus.Registry      // nil khi không có registry
	Runner   *reconcile.Runner
}

// NewServices nối dây runner theo cấu hình trên store đã kết nối.
// registry nil = không thu thập metrics (CLI).
func NewServices(cfg *config.Configuration, s store.Store, registry *prometheus.Registry) (*Services, error) {
	policy, err := reconcile.ParsePolicy(cfg.Reconcile_BrokenPolicy)
	if err != nil {
		return nil, fmt.Errorf("RECONCILE_BROKEN_POLICY: %w", err)
	}

	catalog, err := reconcile.NewCatalog(cfg.Reconcile_JobsFile)
	if err != nil {
		return nil, fmt.Errorf("load reconcile jobs: %w", err)
	}

	svc := &Services{Store: s, Catalog: catalog, Registry: registry}
	opts := []reconcile.Option{
		reconcile.WithReadLimit(cfg.Reconcile_ReadLimit),
		reconcile.WithBatchSize(cfg.Reconcile_BatchSize),
		reconcile.WithDefaultPolicy(policy),
	}

	if cfg.Reconcile_RunsCollection != "" {
		svc.History = reconcile.NewHistory(s, cfg.Reconcile_RunsCollection)
		opts = append(opts, reconcile.WithHistory(svc.History))
	}

	if registry != nil {
		m, err := metrics.NewReconcileMetrics(registry)
		if err != nil {
			return nil, fmt.Errorf("register reconcile metrics: %w", err)
		}
		svc.Metrics = m
		opts = append(opts, reconcile.WithObserver(m))
	}

	svc.Runner = reconcile.NewRunner(s, opts...)

	logger.WithModule("initsvc").WithFields(map[string]interface{}{
		"jobs":      catalog.Names(),
		"policy":    policy,
		"readLimit": cfg.Reconcile_ReadLimit,
		"batchSize": cfg.Reconcile_BatchSize,
		"history":   cfg.Reconcile_RunsCollection,
	}).Info("Initialized reconcile services")
	return svc, nil
}

// IndexSpecs trả về index phục vụ truy vấn của các job: khóa tự nhiên và legacy ref ở canonical,
// khóa ngoại ở dependents, thứ tự đọc created_date, và (job, finishedAtMs) ở lịch sử run.
func IndexSpecs(catalog *reconcile.Catalog, runsCollection string) []database.IndexSpec {
	var specs []database.IndexSpec
	for _, name := range catalog.Names() {
		job, ok := catalog.Get(name)
		if !ok {
			continue
		}
		specs = append(specs,
			database.IndexSpec{Collection: job.Canonical.Collection, Fields: []string{job.Canonical.KeyField}},
			database.IndexSpec{Collection: job.Canonical.Collection, Fields: []string{mongostore.CreatedField}},
			database.IndexSpec{Collection: job.Legacy.Collection, Fields: []string{mongostore.CreatedField}},
		)
		if job.Canonical.LegacyRefField != "" {
			specs = append(specs, database.IndexSpec{
				Collection: job.Canonical.Collection,
				Fields:     []string{job.Canonical.LegacyRefField},
				Sparse:     true,
			})
		}
		for _, dep := range job.Dependents {
			specs = append(specs, database.IndexSpec{Collection: dep.Collection, Fields: []string{dep.ForeignKey}})
		}
	}
	if runsCollection != "" {
		specs = append(specs, database.IndexSpec{Collection: runsCollection, Fields: []string{"job", reconcile.FinishedAtField}})
	}
	return database.DedupeIndexSpecs(specs)
}

// ConnectMongo kết nối MongoDB và trả về store trên database dữ liệu
func ConnectMongo(cfg *config.Configuration) (*mongo.Client, store.Store, error) {
	client, err := database.GetInstance(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, mongostore.New(client.Database(cfg.MongoDB_DBName_Data)), nil
}

// EnsureMongoIndexes tạo index cho các collection mà catalog và lịch sử run truy vấn
func EnsureMongoIndexes(ctx context.Context, client *mongo.Client, cfg *config.Configuration, catalog *reconcile.Catalog) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	db := client.Database(cfg.MongoDB_DBName_Data)
	return database.EnsureIndexes(ctx, db, IndexSpecs(catalog, cfg.Reconcile_RunsCollection))
}
