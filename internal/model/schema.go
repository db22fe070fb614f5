package model

// Schema maps each logical opportunity field to the upstream keys that may
// carry it, most preferred first. The webhook variants disagree on names
// (naicsCodes vs naicsCode, awardAmount vs award.amount flattened, ...), so
// consumers read through a Schema rather than hard-coding one shape.
type Schema struct {
	Title              []string `yaml:"title" mapstructure:"title"`
	Description        []string `yaml:"description" mapstructure:"description"`
	SolicitationNumber []string `yaml:"solicitation_number" mapstructure:"solicitation_number"`
	Type               []string `yaml:"type" mapstructure:"type"`
	NAICS              []string `yaml:"naics" mapstructure:"naics"`
	PSC                []string `yaml:"psc" mapstructure:"psc"`
	SetAside           []string `yaml:"set_aside" mapstructure:"set_aside"`
	PostedDate         []string `yaml:"posted_date" mapstructure:"posted_date"`
	ResponseDeadline   []string `yaml:"response_deadline" mapstructure:"response_deadline"`
	AwardAmount        []string `yaml:"award_amount" mapstructure:"award_amount"`
	Zip                []string `yaml:"zip" mapstructure:"zip"`
	Agency             []string `yaml:"agency" mapstructure:"agency"`
	Link               []string `yaml:"link" mapstructure:"link"`
	MatchScore         []string `yaml:"match_score" mapstructure:"match_score"`
	DaysUntilDue       []string `yaml:"days_until_due" mapstructure:"days_until_due"`
}

// Canonical upstream keys, as emitted by the SAM.gov-shaped webhook payloads.
const (
	KeyTitle              = "title"
	KeyDescription        = "description"
	KeySolicitationNumber = "solicitationNumber"
	KeyType               = "type"
	KeyBaseType           = "baseType"
	KeyNAICS              = "naicsCodes"
	KeyPSC                = "classificationCode"
	KeySetAside           = "typeOfSetAside"
	KeyPostedDate         = "postedDate"
	KeyResponseDeadline   = "responseDeadline"
	KeyAwardAmount        = "awardAmount"
	KeyZip                = "placeOfPerformanceZip"
	KeyAgency             = "fullParentPathName"
	KeyLink               = "uiLink"
	KeyMatchScore         = "match_score"
	KeyDaysUntilDue       = "days_until_due"
)

// DefaultSchema covers every payload variant observed from the webhooks.
func DefaultSchema() Schema {
	return Schema{
		Title:              []string{KeyTitle},
		Description:        []string{KeyDescription},
		SolicitationNumber: []string{KeySolicitationNumber, "notice_id", "noticeId"},
		Type:               []string{KeyType, KeyBaseType},
		NAICS:              []string{KeyNAICS, "naicsCode", "naics"},
		PSC:                []string{KeyPSC, "psc"},
		SetAside:           []string{KeySetAside, "setAside"},
		PostedDate:         []string{KeyPostedDate},
		ResponseDeadline:   []string{KeyResponseDeadline, "responseDeadLine", "deadline"},
		AwardAmount:        []string{KeyAwardAmount, "contract_value", "award_amount"},
		Zip:                []string{KeyZip, "zip"},
		Agency:             []string{KeyAgency, "agency"},
		Link:               []string{KeyLink, "url"},
		MatchScore:         []string{KeyMatchScore, "matchScore", "score"},
		DaysUntilDue:       []string{KeyDaysUntilDue, "daysUntilDue"},
	}
}

// Complete returns s with any unset field falling back to DefaultSchema.
func (s Schema) Complete() Schema {
	d := DefaultSchema()
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&s.Title, d.Title)
	fill(&s.Description, d.Description)
	fill(&s.SolicitationNumber, d.SolicitationNumber)
	fill(&s.Type, d.Type)
	fill(&s.NAICS, d.NAICS)
	fill(&s.PSC, d.PSC)
	fill(&s.SetAside, d.SetAside)
	fill(&s.PostedDate, d.PostedDate)
	fill(&s.ResponseDeadline, d.ResponseDeadline)
	fill(&s.AwardAmount, d.AwardAmount)
	fill(&s.Zip, d.Zip)
	fill(&s.Agency, d.Agency)
	fill(&s.Link, d.Link)
	fill(&s.MatchScore, d.MatchScore)
	fill(&s.DaysUntilDue, d.DaysUntilDue)
	return s
}
