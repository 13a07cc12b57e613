package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const DateLayout = "2006-01-02"

var ErrInvalidEntry = errors.New("invalid job entry")

// JobEntry is one extracted posting. Nullable fields are encoded as null,
// never omitted.
type JobEntry struct {
	Title                 string  `json:"title" validate:"required"`
	CompanyName           string  `json:"company_name" validate:"required"`
	DiscoveryDate         string  `json:"discovery_date" validate:"required,datetime=2006-01-02"`
	JobURL                string  `json:"job_url" validate:"required,url"`
	Requirements          string  `json:"requirements" validate:"required"`
	Duties                string  `json:"duties" validate:"required"`
	AboutProject          string  `json:"about_project" validate:"required"`
	OfferBenefits         string  `json:"offer_benefits" validate:"required"`
	Location              string  `json:"location" validate:"required"`
	ContractType          string  `json:"contract_type" validate:"required"`
	EmploymentType        string  `json:"employment_type" validate:"required"`
	WorkArrangement       string  `json:"work_arrangement" validate:"required"`
	AdditionalInformation *string `json:"additional_information"`
	CompanyURL            *string `json:"company_url"`
	CVPath                *string `json:"cv_path"`
	CoverLetterPath       *string `json:"cover_letter_path"`
}

// OracleFields is the part of JobEntry the oracle fills in; the extractor
// owns job_url, discovery_date and the document paths.
type OracleFields struct {
	Title                 string  `json:"title" jsonschema_description:"Job title"`
	CompanyName           string  `json:"company_name" jsonschema_description:"Hiring company name"`
	Requirements          string  `json:"requirements" jsonschema_description:"Required and nice-to-have skills"`
	Duties                string  `json:"duties" jsonschema_description:"Responsibilities"`
	AboutProject          string  `json:"about_project" jsonschema_description:"Project or team description"`
	OfferBenefits         string  `json:"offer_benefits" jsonschema_description:"Benefits offered"`
	Location              string  `json:"location" jsonschema_description:"Office location or Remote"`
	ContractType          string  `json:"contract_type" jsonschema_description:"Contract type, e.g. B2B, employment contract"`
	EmploymentType        string  `json:"employment_type" jsonschema_description:"Full-time, part-time, internship"`
	WorkArrangement       string  `json:"work_arrangement" jsonschema_description:"Remote, hybrid or on-site"`
	AdditionalInformation *string `json:"additional_information" jsonschema_description:"Anything else relevant, or null"`
	CompanyURL            *string `json:"company_url" jsonschema_description:"Company website, or null"`
}

// NewJobEntry combines oracle output with the fields known to the caller.
func NewJobEntry(f OracleFields, jobURL string, discovered time.Time) JobEntry {
	return JobEntry{
		Title:                 f.Title,
		CompanyName:           f.CompanyName,
		DiscoveryDate:         discovered.Format(DateLayout),
		JobURL:                CanonicalURL(jobURL),
		Requirements:          f.Requirements,
		Duties:                f.Duties,
		AboutProject:          f.AboutProject,
		OfferBenefits:         f.OfferBenefits,
		Location:              f.Location,
		ContractType:          f.ContractType,
		EmploymentType:        f.EmploymentType,
		WorkArrangement:       f.WorkArrangement,
		AdditionalInformation: f.AdditionalInformation,
		CompanyURL:            f.CompanyURL,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NotSpecified is what the oracle writes for a required field the posting
// does not state.
const NotSpecified = "not specified"

// Normalize collapses whitespace, tidies the location, fills an unstated
// work arrangement from the location or title, and turns empty optional
// values into nil.
func (j *JobEntry) Normalize() {
	for _, s := range []*string{
		&j.Title, &j.CompanyName, &j.DiscoveryDate, &j.JobURL, &j.Requirements,
		&j.Duties, &j.AboutProject, &j.OfferBenefits, &j.Location,
		&j.ContractType, &j.EmploymentType, &j.WorkArrangement,
	} {
		*s = strings.Join(strings.Fields(*s), " ")
	}
	j.Location = cleanLocation(j.Location)
	if j.WorkArrangement == "" || strings.EqualFold(j.WorkArrangement, NotSpecified) {
		if a := inferArrangement(j.Location, j.Title); a != "" {
			j.WorkArrangement = a
		}
	}
	for _, p := range []**string{&j.AdditionalInformation, &j.CompanyURL, &j.CVPath, &j.CoverLetterPath} {
		if *p == nil {
			continue
		}
		v := strings.TrimSpace(**p)
		if nullish(v) {
			*p = nil
			continue
		}
		*p = &v
	}
}

// Validate reports ErrInvalidEntry naming every failing field.
func (j *JobEntry) Validate() error {
	err := validate.Struct(j)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("%w: %s", ErrInvalidEntry, strings.Join(fields, ", "))
}
