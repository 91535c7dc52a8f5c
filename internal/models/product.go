package models

// Product is a catalog entry.
type Product struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Brand       string   `yaml:"brand" json:"brand"`
	Price       float64  `yaml:"price" json:"price"`
	Description string   `yaml:"description" json:"description"`
	Image       string   `yaml:"image" json:"image"`
	Color       string   `yaml:"color" json:"color"`
	Sizes       []string `yaml:"sizes" json:"sizes"`
	Category    string   `yaml:"category" json:"category"`
	Rating      float64  `yaml:"rating" json:"rating"`
	Reviews     int      `yaml:"reviews" json:"reviews"`
}
