package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/auth"
	"github.com/peakee-labs/blinders/config"
	"github.com/peakee-labs/blinders/storage"
)

type userSeeder interface {
	UpsertUser(ctx context.Context, rec auth.UserRecord) error
}

// seedUsers upserts the directory records in data, a JSON array of users.
func seedUsers(ctx context.Context, s userSeeder, data []byte) (int, error) {
	var recs []auth.UserRecord
	if err := sonic.Unmarshal(data, &recs); err != nil {
		return 0, fmt.Errorf("decode users: %w", err)
	}
	for i, rec := range recs {
		if rec.ID == "" || rec.SubjectID == "" {
			return i, fmt.Errorf("user %d: id and subjectId are required", i)
		}
		if err := s.UpsertUser(ctx, rec); err != nil {
			return i, fmt.Errorf("upsert user %s: %w", rec.SubjectID, err)
		}
	}
	return len(recs), nil
}

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.SetupLogging()
	logger.Info("storage init starting")

	st, err := config.LoadStorage()
	if err != nil {
		log.Fatalf("storage config: %v", err)
	}
	if st.ConnectionString == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := storage.CreateTables(ctx, st.ConnectionString, []string{st.UsersTable, st.ExplainLogsTable}); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	if err := storage.CreateQueues(ctx, st.ConnectionString, []string{st.CollectQueue}); err != nil {
		log.Fatalf("create queues: %v", err)
	}

	if path := config.String("SEED_USERS_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read seed users: %v", err)
		}
		store, err := storage.New(st.ConnectionString, st.UsersTable, st.ExplainLogsTable)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		n, err := seedUsers(ctx, store, data)
		if err != nil {
			log.Fatalf("seed users: %v", err)
		}
		logger.Infof("seeded %d users", n)
	}

	if config.Bool("INIT_VECTOR_COLLECTION") {
		vc, err := config.LoadVector()
		if err != nil {
			log.Fatalf("vector config: %v", err)
		}
		vectors, err := storage.NewVectorStore(storage.VectorConfig{
			Host:       vc.Host,
			Port:       vc.Port,
			APIKey:     vc.APIKey,
			UseTLS:     vc.UseTLS,
			Collection: vc.Collection,
			Dimension:  uint64(vc.Dimension),
		})
		if err != nil {
			log.Fatalf("vector store: %v", err)
		}
		if err := vectors.EnsureCollection(ctx); err != nil {
			log.Fatalf("vector collection: %v", err)
		}
	}

	logger.Info("storage init complete")
}
