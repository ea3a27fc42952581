package postgres

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

type chunkModel struct {
	ID           string `gorm:"primaryKey;size:512"`
	ContainerTag string `gorm:"index:idx_memory_chunks_container;size:128;not null"`
	Content      string `gorm:"type:text"`
	SessionID    string `gorm:"size:256"`
	ChunkIndex   int
	Date         string          `gorm:"size:32"`
	EventDate    string          `gorm:"size:32"`
	Embedding    pgvector.Vector `gorm:"type:vector(3072)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (chunkModel) TableName() string { return "memory_chunks" }

type factModel struct {
	ID           string `gorm:"primaryKey;size:512"`
	ContainerTag string `gorm:"index:idx_memory_facts_container;size:128;not null"`
	Content      string `gorm:"type:text"`
	SessionID    string `gorm:"size:256"`
	FactIndex    int
	Date         string          `gorm:"size:32"`
	EventDate    string          `gorm:"size:32"`
	Embedding    pgvector.Vector `gorm:"type:vector(3072)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (factModel) TableName() string { return "memory_facts" }

type entityModel struct {
	ContainerTag string         `gorm:"primaryKey;size:128"`
	Name         string         `gorm:"primaryKey;size:256"`
	Type         string         `gorm:"size:64"`
	Summary      string         `gorm:"type:text"`
	SessionIDs   pq.StringArray `gorm:"type:text[]"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (entityModel) TableName() string { return "graph_entities" }

type relationshipModel struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ContainerTag string `gorm:"index:idx_graph_relationships_container;size:128;not null"`
	Source       string `gorm:"size:256"`
	Relation     string `gorm:"size:128"`
	Target       string `gorm:"size:256"`
	Date         string `gorm:"size:32"`
	SessionID    string `gorm:"size:256"`
	CreatedAt    time.Time
}

func (relationshipModel) TableName() string { return "graph_relationships" }

type profileFactModel struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ContainerTag string `gorm:"index:idx_profile_facts_container;size:128;not null"`
	Position     int
	Content      string `gorm:"type:text"`
	CreatedAt    time.Time
}

func (profileFactModel) TableName() string { return "profile_facts" }
