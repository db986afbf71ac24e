package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/therapy-scheduling/internal/config"
	"github.com/hackgods/therapy-scheduling/internal/db"
	"github.com/hackgods/therapy-scheduling/internal/logging"
)

const (
	practitionerCount = 50
	patientCount      = 2000
	availabilityDays  = 14
	dayStartHour      = 9
	dayEndHour        = 17
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}
	log := logging.New(cfg.Env, cfg.LogLevel)
	log.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	practitioners, err := seedPractitioners(context.Background(), pool, faker, log, practitionerCount)
	if err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	if err := seedPatients(context.Background(), pool, faker, log, patientCount); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSlots(context.Background(), pool, cfg, log, practitioners); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Info("seed complete")
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, log *logrus.Logger, count int) ([]uuid.UUID, error) {
	log.Infof("seeding %d practitioners", count)

	ids := make([]uuid.UUID, 0, count)
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO practitioners (id, name, email, mobile, bio, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, id, faker.Name(), faker.Email(), faker.Phone(), bio(faker))
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("practitioners seeded")
	return ids, nil
}

func bio(faker *gofakeit.Faker) string {
	return fmt.Sprintf("%s with %d years of practice", faker.JobTitle(), faker.Number(2, 30))
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, log *logrus.Logger, count int) error {
	log.Infof("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			batch.Queue(`
				INSERT INTO patients (id, name, email, mobile, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), faker.Name(), faker.Email(), faker.Phone())
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		log.Infof("patients seeded: %d/%d", end, count)
	}

	return nil
}

// seedSlots opens back-to-back slots of the configured length across working
// hours for the coming days.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, log *logrus.Logger, practitioners []uuid.UUID) error {
	y, m, d := time.Now().In(cfg.Location).Date()
	firstDay := time.Date(y, m, d, 0, 0, 0, 0, cfg.Location).AddDate(0, 0, 1)
	seconds := int64(cfg.SlotLength / time.Second)

	for _, practitionerID := range practitioners {
		batch := &pgx.Batch{}
		for day := 0; day < availabilityDays; day++ {
			date := firstDay.AddDate(0, 0, day)
			if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
				continue
			}

			start := date.Add(dayStartHour * time.Hour)
			end := date.Add(dayEndHour * time.Hour)
			for t := start; t.Before(end); t = t.Add(cfg.SlotLength) {
				batch.Queue(`
					INSERT INTO appointment_slots (id, practitioner_id, start_time, length_seconds, price, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5::numeric, now(), now())
				`, uuid.New(), practitionerID, t, seconds, cfg.SlotPrice.String())
			}
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	log.Infof("slots seeded for %d practitioners over %d days", len(practitioners), availabilityDays)
	return nil
}
