package db

import (
	"fmt"
	"log/slog"
	"testing"
)

const benchmarkRows = 1000

func setupBenchmarkEngine(b *testing.B) *Engine {
	b.Helper()
	engine := NewEngine(nil, Config{Logger: slog.New(slog.DiscardHandler)})

	mustExecute(b, engine, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(40), age INTEGER, city VARCHAR(40))")
	mustExecute(b, engine, "CREATE INDEX idx_users_city ON users (city)")
	for i := 1; i <= benchmarkRows; i++ {
		mustExecute(b, engine, fmt.Sprintf("INSERT INTO users (id, name, age, city) VALUES (%d, 'User%d', %d, 'City%d')", i, i, 20+i%50, i%10))
	}
	return engine
}

func mustExecute(b *testing.B, engine *Engine, query string) {
	b.Helper()
	if _, err := engine.Execute(query); err != nil {
		b.Fatalf("Execute(%q): %v", query, err)
	}
}

func BenchmarkSelectAll(b *testing.B) {
	engine := setupBenchmarkEngine(b)
	b.ResetTimer()
	for b.Loop() {
		mustExecute(b, engine, "SELECT * FROM users")
	}
}

func BenchmarkSelectIndexScan(b *testing.B) {
	engine := setupBenchmarkEngine(b)
	b.ResetTimer()
	for b.Loop() {
		mustExecute(b, engine, "SELECT name FROM users WHERE id = 500")
	}
}

func BenchmarkSelectFullScan(b *testing.B) {
	engine := setupBenchmarkEngine(b)
	b.ResetTimer()
	for b.Loop() {
		mustExecute(b, engine, "SELECT name FROM users WHERE age = 42")
	}
}

func BenchmarkInsert(b *testing.B) {
	engine := setupBenchmarkEngine(b)
	id := benchmarkRows
	b.ResetTimer()
	for b.Loop() {
		id++
		mustExecute(b, engine, fmt.Sprintf("INSERT INTO users (id, name, age, city) VALUES (%d, 'User', 30, 'City1')", id))
	}
}

func BenchmarkExplain(b *testing.B) {
	engine := setupBenchmarkEngine(b)
	b.ResetTimer()
	for b.Loop() {
		if _, err := engine.Explain("SELECT * FROM users WHERE city = 'City3'"); err != nil {
			b.Fatal(err)
		}
	}
}
