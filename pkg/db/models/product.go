package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is a catalog listing. Stock is only decremented by checkout.
type Product struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name               string             `gorm:"column:name;not null"`
	Description        string             `gorm:"column:description;not null"`
	Barcode            *string            `gorm:"column:barcode;uniqueIndex"`
	Price              decimal.Decimal    `gorm:"column:price;type:numeric(10,2);not null"`
	Cost               decimal.Decimal    `gorm:"column:cost;type:numeric(10,2);not null;default:0"`
	DiscountPercentage decimal.Decimal    `gorm:"column:discount_percentage;type:numeric(5,2);not null;default:0"`
	Stock              int                `gorm:"column:stock;not null;default:0"`
	NumberOfSales      int                `gorm:"column:number_of_sales;not null;default:0"`
	Type               enums.ProductType  `gorm:"column:type;not null;default:'main'"`
	MainImage          *string            `gorm:"column:main_image"`
	Images             dbtypes.StringList `gorm:"column:images"`
	BrandID            *uuid.UUID         `gorm:"column:brand_id;type:uuid"`
	Brand              *Brand             `gorm:"foreignKey:BrandID;constraint:OnDelete:SET NULL"`
	Categories         []Category         `gorm:"many2many:product_categories;constraint:OnDelete:CASCADE"`
	Tags               []Tag              `gorm:"many2many:product_tags;constraint:OnDelete:CASCADE"`
	LinkedProducts     []Product          `gorm:"many2many:product_links;joinForeignKey:ProductID;joinReferences:LinkedProductID"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

type Brand struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (b *Brand) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

type Tag struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (t *Tag) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
