package persistence

import "EstateGuru/internal/modules/estate/domain/property"

type seedListing struct {
	code, title, locality, desc, furnishing, amenities string
	bedrooms, area                                     int
	sale, rent                                         float64
}

var demoListings = []seedListing{
	{"PROP-WAK-001", "Evergreen Heights", "Wakad", "2 BHK in Evergreen Heights with excellent amenities", "semi-furnished", "clubhouse, gym, swimming pool, covered parking", 2, 920, 7650000, 25000},
	{"PROP-WAK-002", "Evergreen Heights", "Wakad", "Spacious 3 BHK corner residence with dual balconies", "unfurnished", "clubhouse, gym, children's play area", 3, 1200, 9980000, 35000},
	{"PROP-BAN-001", "Summit Residency", "Baner", "Modern 2 BHK in prime Baner location", "furnished", "rooftop garden, gym, power backup", 2, 950, 8500000, 28000},
	{"PROP-HIN-001", "TechVista Towers", "Hinjewadi", "IT professional friendly 2 BHK near tech parks", "semi-furnished", "co-working lounge, shuttle to IT park, gym", 2, 860, 6850000, 22000},
	{"PROP-KHA-001", "Skyline Orchid", "Kharadi", "Premium 2 BHK near IT hubs", "unfurnished", "infinity pool, jogging track, security", 2, 940, 7850000, 26000},
}

// DemoProperties 演示目录：每个房源同时有出售和出租两条记录
func DemoProperties() []*property.Property {
	out := make([]*property.Property, 0, len(demoListings)*2)
	for _, l := range demoListings {
		base := property.Property{
			Title:        l.title,
			Locality:     l.locality,
			City:         "Pune",
			PropertyType: "apartment",
			Bedrooms:     l.bedrooms,
			AreaSqft:     l.area,
			Furnishing:   l.furnishing,
			Amenities:    l.amenities,
			Description:  l.desc,
		}
		sale := base
		sale.PropertyID = l.code
		sale.TransactionType = property.TransactionSale
		sale.Price = l.sale
		rent := base
		rent.PropertyID = l.code + "-R"
		rent.TransactionType = property.TransactionRent
		rent.Price = l.rent
		out = append(out, &sale, &rent)
	}
	return out
}
