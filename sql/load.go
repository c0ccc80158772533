package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed videos.sql
var videosSQL string

//go:embed chunks.sql
var chunksSQL string

// Table lists for verification
var VideosTables = []string{
	"videos",
}

var ChunksTables = []string{
	"chunks",
}

// LoadVideosSql creates the videos schema.
// If force is false and the tables already exist, nothing is executed.
func LoadVideosSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkTables(db, VideosTables)
		if err != nil {
			return fmt.Errorf("error checking existing videos tables: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(videosSQL)
	if err != nil {
		return fmt.Errorf("error executing videos SQL: %w", err)
	}

	exist, err := checkTables(db, VideosTables)
	if err != nil {
		return fmt.Errorf("error checking existing tables: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required tables were created")
	}

	log.Println("SQL videos schema loaded successfully")
	return nil
}

// LoadChunksSql creates the chunks schema.
// If force is false and the tables already exist, nothing is executed.
func LoadChunksSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkTables(db, ChunksTables)
		if err != nil {
			return fmt.Errorf("error checking existing chunks tables: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(chunksSQL)
	if err != nil {
		return fmt.Errorf("error executing chunks SQL: %w", err)
	}

	exist, err := checkTables(db, ChunksTables)
	if err != nil {
		return fmt.Errorf("error checking existing tables: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required tables were created")
	}

	log.Println("SQL chunks schema loaded successfully")
	return nil
}

// LoadAllSql loads the full schema. Videos first, chunks reference them.
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadVideosSql(db, force); err != nil {
		return err
	}

	if err := LoadChunksSql(db, force); err != nil {
		return err
	}

	return nil
}

// checkTables verifies that all required tables exist in the database
func checkTables(db *sql.DB, tables []string) (bool, error) {
	var allExist bool
	for _, table := range tables {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?);`,
			table,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of table %s: %w", table, err)
		}
		if !allExist {
			log.Printf("Table %s does not exist", table)
			break
		}
	}
	return allExist, nil
}
