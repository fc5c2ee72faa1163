package forms

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kendall-kelly/servicepro-api/models"
)

// MissingCustomerMessage is reported on customerId when neither an existing
// customer nor new customer details were supplied
const MissingCustomerMessage = "Either select an existing customer or provide new customer name and phone."

// JobFormInput is the job form as submitted: identifiers arrive as strings and
// optional fields may be missing.
type JobFormInput struct {
	ReceiptNo           string     `json:"receiptNo" validate:"required"`
	Title               string     `json:"title"`
	Status              string     `json:"status"`
	AssignedToID        string     `json:"assignedToId"`
	DiagnosedByID       string     `json:"diagnosedById"`
	CheckInDate         *time.Time `json:"checkInDate"`
	PrinterBrand        *string    `json:"printerBrand"`
	PrinterModel        *string    `json:"printerModel"`
	PrinterSerial       *string    `json:"printerSerial"`
	AccessoriesReceived *string    `json:"accessoriesReceived"`
	ImageURL1           string     `json:"imageUrl1" validate:"omitempty,url"`
	ImageURL2           string     `json:"imageUrl2" validate:"omitempty,url"`
	ImageURL3           string     `json:"imageUrl3" validate:"omitempty,url"`
	ProblemsReported    string     `json:"problemsReported" validate:"required"`
	InitialObservations *string    `json:"initialObservations"`
	Notes               *string    `json:"notes"`

	PartsCost            *float64   `json:"partsCost" validate:"omitempty,gte=0"`
	LaborCost            *float64   `json:"laborCost" validate:"omitempty,gte=0"`
	OtherCharges         *float64   `json:"otherCharges" validate:"omitempty,gte=0"`
	PaymentStatus        *string    `json:"paymentStatus"`
	PaymentMethod        *string    `json:"paymentMethod"`
	CustomerNotifiedDate *time.Time `json:"customerNotifiedDate"`
	CustomerPickedUp     *bool      `json:"customerPickedUp"`

	CustomerID      string `json:"customerId"`
	CustomerName    string `json:"customerName"`
	CustomerPhone   string `json:"customerPhone"`
	CustomerEmail   string `json:"customerEmail" validate:"omitempty,email"`
	CustomerAddress string `json:"customerAddress"`
}

// CustomerRef identifies the customer a job belongs to: either an existing id
// or the details to find or create one.
type CustomerRef struct {
	CustomerID *uint  `json:"customerId" validate:"omitempty,gt=0"`
	Name       string `json:"customerName"`
	Phone      string `json:"customerPhone"`
	Email      string `json:"customerEmail" validate:"omitempty,email"`
	Address    string `json:"customerAddress"`
}

// JobInput is the storage-ready job. Nil pointers mean "not supplied".
type JobInput struct {
	ReceiptNo           string           `json:"receiptNo" validate:"required"`
	Title               string           `json:"title"`
	Status              models.JobStatus `json:"status" validate:"required,jobstatus"`
	AssignedToID        *uint            `json:"assignedToId" validate:"omitempty,gt=0"`
	DiagnosedByID       *uint            `json:"diagnosedById" validate:"omitempty,gt=0"`
	CheckInDate         time.Time        `json:"checkInDate" validate:"required"`
	PrinterBrand        *string          `json:"printerBrand"`
	PrinterModel        *string          `json:"printerModel"`
	PrinterSerial       *string          `json:"printerSerial"`
	AccessoriesReceived *string          `json:"accessoriesReceived"`
	ImageURL1           *string          `json:"imageUrl1" validate:"omitempty,url"`
	ImageURL2           *string          `json:"imageUrl2" validate:"omitempty,url"`
	ImageURL3           *string          `json:"imageUrl3" validate:"omitempty,url"`
	ProblemsReported    string           `json:"problemsReported" validate:"required"`
	InitialObservations *string          `json:"initialObservations"`
	Notes               *string          `json:"notes"`

	PartsCost            *float64   `json:"partsCost" validate:"omitempty,gte=0"`
	LaborCost            *float64   `json:"laborCost" validate:"omitempty,gte=0"`
	OtherCharges         *float64   `json:"otherCharges" validate:"omitempty,gte=0"`
	PaymentStatus        *string    `json:"paymentStatus"`
	PaymentMethod        *string    `json:"paymentMethod"`
	CustomerNotifiedDate *time.Time `json:"customerNotifiedDate"`
	CustomerPickedUp     *bool      `json:"customerPickedUp"`

	Customer CustomerRef `json:"customer"`

	// StatusDefaulted and CheckInDateDefaulted record that the value was filled
	// in rather than submitted.
	StatusDefaulted      bool `json:"-"`
	CheckInDateDefaulted bool `json:"-"`
}

// HasCosts reports whether any billable amount was supplied
func (in JobInput) HasCosts() bool {
	return in.PartsCost != nil || in.LaborCost != nil || in.OtherCharges != nil
}

func init() {
	// registered before the first validation runs
	_ = structValidator().RegisterValidation("jobstatus", func(fl validator.FieldLevel) bool {
		return models.JobStatus(fl.Field().String()).Valid()
	})
}

// ValidateJobForm runs both validation passes: the submitted form shape, then
// the transformed internal shape. now is used for the check-in date default.
func ValidateJobForm(in JobFormInput, now time.Time) (*JobInput, error) {
	in.CustomerName = trimmed(in.CustomerName)
	in.CustomerPhone = trimmed(in.CustomerPhone)
	in.CustomerEmail = trimmed(in.CustomerEmail)
	in.CustomerAddress = trimmed(in.CustomerAddress)

	formErr := &ValidationError{Stage: StageForm, Message: "Invalid form data."}
	if err := checkStruct(in, formErr); err != nil {
		return nil, err
	}

	if in.Status != "" && !models.JobStatus(in.Status).Valid() {
		formErr.Add("status", "Invalid job status.")
	}
	for path, raw := range map[string]string{
		"assignedToId":  in.AssignedToID,
		"diagnosedById": in.DiagnosedByID,
		"customerId":    in.CustomerID,
	} {
		if raw == "" {
			continue
		}
		if _, ok := parseID(raw); !ok {
			formErr.Add(path, "Must be a numeric id.")
		}
	}
	if in.CustomerID == "" && (in.CustomerName == "" || in.CustomerPhone == "") {
		formErr.Add("customerId", MissingCustomerMessage)
	}
	if len(formErr.Fields) > 0 {
		return nil, formErr
	}

	out := transformJobForm(in, now)

	internalErr := &ValidationError{Stage: StageInternal, Message: "Invalid job data."}
	if err := checkStruct(*out, internalErr); err != nil {
		return nil, err
	}
	if len(internalErr.Fields) > 0 {
		return nil, internalErr
	}
	return out, nil
}

// transformJobForm applies the coercions and defaults between the two passes
func transformJobForm(in JobFormInput, now time.Time) *JobInput {
	out := &JobInput{
		ReceiptNo:            in.ReceiptNo,
		Title:                in.Title,
		Status:               models.JobStatus(in.Status),
		AssignedToID:         optionalID(in.AssignedToID),
		DiagnosedByID:        optionalID(in.DiagnosedByID),
		PrinterBrand:         in.PrinterBrand,
		PrinterModel:         in.PrinterModel,
		PrinterSerial:        in.PrinterSerial,
		AccessoriesReceived:  in.AccessoriesReceived,
		ImageURL1:            optionalString(in.ImageURL1),
		ImageURL2:            optionalString(in.ImageURL2),
		ImageURL3:            optionalString(in.ImageURL3),
		ProblemsReported:     in.ProblemsReported,
		InitialObservations:  in.InitialObservations,
		Notes:                in.Notes,
		PartsCost:            in.PartsCost,
		LaborCost:            in.LaborCost,
		OtherCharges:         in.OtherCharges,
		PaymentStatus:        in.PaymentStatus,
		PaymentMethod:        in.PaymentMethod,
		CustomerNotifiedDate: in.CustomerNotifiedDate,
		CustomerPickedUp:     in.CustomerPickedUp,
		Customer: CustomerRef{
			CustomerID: optionalID(in.CustomerID),
			Name:       trimmed(in.CustomerName),
			Phone:      trimmed(in.CustomerPhone),
			Email:      trimmed(in.CustomerEmail),
			Address:    trimmed(in.CustomerAddress),
		},
	}

	if out.Status == "" {
		out.Status = models.StatusItemReceived
		out.StatusDefaulted = true
	}
	if in.CheckInDate == nil || in.CheckInDate.IsZero() {
		out.CheckInDate = now
		out.CheckInDateDefaulted = true
	} else {
		out.CheckInDate = *in.CheckInDate
	}
	return out
}

// parseID parses a positive decimal identifier
func parseID(raw string) (uint, bool) {
	n, err := strconv.ParseUint(trimmed(raw), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// optionalID maps "" to nil instead of zero
func optionalID(raw string) *uint {
	if raw == "" {
		return nil
	}
	id, ok := parseID(raw)
	if !ok {
		return nil
	}
	return &id
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
