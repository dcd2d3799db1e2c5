// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/avstrong/hotel/internal/calendar"
)

const (
	defaultRoomCount    = 20
	defaultStandardRate = 200.0
	defaultQueue        = "hotel.bookings"
)

type Config struct {
	RoomCount    int
	StandardRate float64
	Seed         bool
	ReportDate   calendar.Date
	AMQPURL      string // empty disables event publishing
	AMQPQueue    string
}

// Load reads the given dotenv files (".env" when none are given) and then the
// environment. Variables already set in the environment win over the files.
// A missing dotenv file is not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	roomCount, err := getInt("HOTEL_ROOM_COUNT", defaultRoomCount)
	if err != nil {
		return Config{}, err
	}

	rate, err := getFloat("HOTEL_STANDARD_RATE", defaultStandardRate)
	if err != nil {
		return Config{}, err
	}

	seed, err := getBool("HOTEL_SEED", true)
	if err != nil {
		return Config{}, err
	}

	reportDate := calendar.FromTime(time.Now().UTC())
	if v := os.Getenv("HOTEL_REPORT_DATE"); v != "" {
		if reportDate, err = calendar.Parse(v); err != nil {
			return Config{}, fmt.Errorf("HOTEL_REPORT_DATE: %w", err)
		}
	}

	return Config{
		RoomCount:    roomCount,
		StandardRate: rate,
		Seed:         seed,
		ReportDate:   reportDate,
		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPQueue:    getenv("AMQP_QUEUE", defaultQueue),
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q", key, v)
	}

	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for %s: %q", key, v)
	}

	return f, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q", key, v)
	}

	return b, nil
}
