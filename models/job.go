package models

import "time"

// Job represents a repair work order
type Job struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReceiptNo string    `gorm:"not null;index" json:"receipt_no"`
	Title     string    `gorm:"not null" json:"title"`
	Status    JobStatus `gorm:"type:varchar(32);not null;default:'ITEM_RECEIVED';index" json:"status"`

	// Intake
	CheckInDate         time.Time `gorm:"not null" json:"check_in_date"`
	PrinterBrand        *string   `json:"printer_brand"`
	PrinterModel        *string   `json:"printer_model"`
	PrinterSerial       *string   `json:"printer_serial"`
	AccessoriesReceived *string   `json:"accessories_received"`
	// image slots hold an object storage key or an external URL
	ImageURL1           *string   `gorm:"column:image_url1" json:"image_url1"`
	ImageURL2           *string   `gorm:"column:image_url2" json:"image_url2"`
	ImageURL3           *string   `gorm:"column:image_url3" json:"image_url3"`
	ImageLinks          []string  `gorm:"-" json:"image_links,omitempty"` // computed, fresh links for the slots
	ProblemsReported    string    `gorm:"type:text;not null" json:"problems_reported"`
	InitialObservations *string   `gorm:"type:text" json:"initial_observations"`

	// Relationships
	CustomerID    uint      `gorm:"not null;index" json:"customer_id"`
	Customer      *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	AssignedToID  *uint     `gorm:"index" json:"assigned_to_id"` // technician
	AssignedTo    *User     `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	DiagnosedByID *uint     `json:"diagnosed_by_id"`
	DiagnosedBy   *User     `gorm:"foreignKey:DiagnosedByID" json:"diagnosed_by,omitempty"`
	DeliveredByID *uint     `json:"delivered_by_id"`
	DeliveredBy   *User     `gorm:"foreignKey:DeliveredByID" json:"delivered_by,omitempty"`
	CreatedByID   uint      `gorm:"not null;index" json:"created_by_id"`
	CreatedBy     *User     `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	// Billing
	PartsCost     *float64 `gorm:"type:decimal(10,2)" json:"parts_cost"`
	LaborCost     *float64 `gorm:"type:decimal(10,2)" json:"labor_cost"`
	OtherCharges  *float64 `gorm:"type:decimal(10,2)" json:"other_charges"`
	TotalCharge   *float64 `gorm:"type:decimal(10,2)" json:"total_charge"`
	PaymentStatus *string  `json:"payment_status"`
	PaymentMethod *string  `json:"payment_method"`

	// Pickup
	CustomerNotifiedDate *time.Time `json:"customer_notified_date"`
	CustomerPickedUp     bool       `gorm:"not null;default:false" json:"customer_picked_up"`
	PickupDate           *time.Time `json:"pickup_date"`
	DeliveryTimestamp    *time.Time `json:"delivery_timestamp"`

	Notes     *string   `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Job model
func (Job) TableName() string {
	return "jobs"
}

// ChargeTotal sums the billable amounts; unset amounts count as zero
func (j Job) ChargeTotal() float64 {
	var total float64
	for _, v := range []*float64{j.PartsCost, j.LaborCost, j.OtherCharges} {
		if v != nil {
			total += *v
		}
	}
	return total
}

// ImageURLs returns the populated image slots in order
func (j Job) ImageURLs() []string {
	var urls []string
	for _, v := range []*string{j.ImageURL1, j.ImageURL2, j.ImageURL3} {
		if v != nil && *v != "" {
			urls = append(urls, *v)
		}
	}
	return urls
}
