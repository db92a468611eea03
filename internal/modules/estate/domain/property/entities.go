package property

import "time"

// TransactionType 交易类型
const (
	TransactionSale = "sale"
	TransactionRent = "rent"
)

// Property 结构化房源目录中的一条记录
type Property struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	PropertyID      string    `gorm:"column:property_id;type:varchar(32);uniqueIndex;not null" json:"property_id"`
	Title           string    `gorm:"column:title;type:varchar(128)" json:"title"`
	Locality        string    `gorm:"column:locality;type:varchar(64);index" json:"locality"`
	City            string    `gorm:"column:city;type:varchar(64)" json:"city"`
	PropertyType    string    `gorm:"column:property_type;type:varchar(32);index" json:"property_type"`
	TransactionType string    `gorm:"column:transaction_type;type:varchar(16);index" json:"transaction_type"`
	Bedrooms        int       `gorm:"column:bedrooms" json:"bedrooms"`
	Price           float64   `gorm:"column:price" json:"price"`
	AreaSqft        int       `gorm:"column:area_sqft" json:"area_sqft"`
	Furnishing      string    `gorm:"column:furnishing;type:varchar(32)" json:"furnishing"`
	Amenities       string    `gorm:"column:amenities;type:varchar(512)" json:"amenities"`
	Description     string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"-"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"-"`
}

func (Property) TableName() string { return "estate_property" }

// SearchFilter 目录检索条件，全部可选
type SearchFilter struct {
	Locality        string
	PropertyType    string
	TransactionType string
	MinPrice        *float64
	MaxPrice        *float64
	Bedrooms        *int
	Furnishing      string
	Limit           int
}

// Summary 返回给 agent 的精简房源信息
type Summary struct {
	PropertyID      string  `json:"property_id"`
	Title           string  `json:"title"`
	Locality        string  `json:"locality"`
	PropertyType    string  `json:"property_type"`
	TransactionType string  `json:"transaction_type"`
	Bedrooms        int     `json:"bedrooms"`
	Price           float64 `json:"price"`
	AreaSqft        int     `json:"area_sqft"`
	Furnishing      string  `json:"furnishing,omitempty"`
}

func (p *Property) Summary() Summary {
	return Summary{
		PropertyID:      p.PropertyID,
		Title:           p.Title,
		Locality:        p.Locality,
		PropertyType:    p.PropertyType,
		TransactionType: p.TransactionType,
		Bedrooms:        p.Bedrooms,
		Price:           p.Price,
		AreaSqft:        p.AreaSqft,
		Furnishing:      p.Furnishing,
	}
}
