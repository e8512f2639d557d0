package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminUnit is a searchable document for the city or one of its districts.
type AdminUnit struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	AdminID          string             `bson:"admin_id" json:"id"` // also the search primary key
	ParentID         string             `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	Level            int                `bson:"level" json:"level"`
	Name             string             `bson:"name" json:"name"` // canonical Cyrillic name
	NormalizedName   string             `bson:"normalized_name" json:"normalized_name"`
	LatinName        string             `bson:"latin_name" json:"latin_name"` // transliterated
	AdminSubtype     string             `bson:"admin_subtype" json:"admin_subtype"`
	Aliases          []string           `bson:"aliases,omitempty" json:"aliases,omitempty"`
	LatinAliases     []string           `bson:"latin_aliases,omitempty" json:"latin_aliases,omitempty"`
	Path             []string           `bson:"path" json:"path"`
	GazetteerVersion string             `bson:"gazetteer_version" json:"gazetteer_version"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

const (
	AdminSubtypeCapital  = "capital"
	AdminSubtypeDistrict = "district"
)

const (
	LevelCity        = 1
	LevelDistrict    = 2
	LevelSubDistrict = 3
)

// IsValidAdminSubtype reports whether AdminSubtype is known.
func (au *AdminUnit) IsValidAdminSubtype() bool {
	return au.AdminSubtype == AdminSubtypeCapital || au.AdminSubtype == AdminSubtypeDistrict
}

// IsValidLevel reports whether Level is known.
func (au *AdminUnit) IsValidLevel() bool {
	return au.Level >= LevelCity && au.Level <= LevelSubDistrict
}

// GetFullPath joins the path and the unit's own name with " > ".
func (au *AdminUnit) GetFullPath() string {
	return strings.Join(append(append([]string(nil), au.Path...), au.NormalizedName), " > ")
}
