package fetcher

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bidscout/internal/model"
)

func TestParseOpportunityCSV_Basic(t *testing.T) {
	input := "title,solicitationNumber,awardAmount\n" +
		"Roof Repair,W912-25-R-0001,150000\n" +
		"HVAC Upgrade,N00024-25-Q-0002,75000\n"

	ops := ParseOpportunityCSV(input)
	require.Len(t, ops, 2)
	assert.Equal(t, "Roof Repair", ops[0]["title"])
	assert.Equal(t, "W912-25-R-0001", ops[0]["solicitationNumber"])
	assert.Equal(t, "150000", ops[0]["awardAmount"])
	assert.Equal(t, "HVAC Upgrade", ops[1]["title"])
}

func TestParseOpportunityCSV_RecordCountAndKeys(t *testing.T) {
	headers := []string{"title", "naicsCodes", "typeOfSetAside", "responseDeadline"}
	for _, n := range []int{0, 1, 5, 40} {
		t.Run(fmt.Sprintf("%d rows", n), func(t *testing.T) {
			var sb strings.Builder
			sb.WriteString(strings.Join(headers, ",") + "\n")
			for i := range n {
				fmt.Fprintf(&sb, "Item %d,238220,SBA,2026-01-%02d\n", i, i%28+1)
			}

			ops := ParseOpportunityCSV(sb.String())
			require.Len(t, ops, n)
			for i, op := range ops {
				assert.Len(t, op, len(headers))
				for _, h := range headers {
					assert.Contains(t, op, h)
				}
				assert.Equal(t, fmt.Sprintf("Item %d", i), op["title"], "row order preserved")
			}
		})
	}
}

func TestParseOpportunityCSV_TooFewLines(t *testing.T) {
	assert.Empty(t, ParseOpportunityCSV(""))
	assert.Empty(t, ParseOpportunityCSV("title,naicsCodes"))
	assert.Empty(t, ParseOpportunityCSV("title,naicsCodes\n\n"))
	assert.NotNil(t, ParseOpportunityCSV(""))
}

func TestParseOpportunityCSV_TrailingBlankLineIgnored(t *testing.T) {
	ops := ParseOpportunityCSV("title\nA\nB\n\n")
	require.Len(t, ops, 2)
}

func TestParseOpportunityCSV_UnknownNormalization(t *testing.T) {
	input := "title,awardAmount,placeOfPerformanceZip,typeOfSetAside\n" +
		"A,,null,NULL\n" +
		"B,\"\",Null,\"null\"\n"

	ops := ParseOpportunityCSV(input)
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, model.Unknown, op["awardAmount"])
		assert.Equal(t, model.Unknown, op["placeOfPerformanceZip"])
		assert.Equal(t, model.Unknown, op["typeOfSetAside"])
		assert.NotEqual(t, "", op["awardAmount"], "unknown is not the empty string")
	}
}

func TestParseOpportunityCSV_QuotedComma(t *testing.T) {
	input := `title,fullParentPathName,naicsCodes
"Roofing, Phase 2","DEPT OF DEFENSE.DEPT OF THE ARMY","238160,238220"
`
	ops := ParseOpportunityCSV(input)
	require.Len(t, ops, 1)
	assert.Equal(t, "Roofing, Phase 2", ops[0]["title"])
	assert.Equal(t, "DEPT OF DEFENSE.DEPT OF THE ARMY", ops[0]["fullParentPathName"])
	assert.Equal(t, "238160,238220", ops[0]["naicsCodes"])
}

func TestParseOpportunityCSV_QuotedHeaders(t *testing.T) {
	ops := ParseOpportunityCSV("\"title\", \"uiLink\" \nA,https://sam.gov/opp/1\n")
	require.Len(t, ops, 1)
	assert.Equal(t, "A", ops[0]["title"])
	assert.Equal(t, "https://sam.gov/opp/1", ops[0]["uiLink"])
}

func TestParseOpportunityCSV_ShortAndLongRows(t *testing.T) {
	ops := ParseOpportunityCSV("a,b,c\n1\n1,2,3,4\n")
	require.Len(t, ops, 2)

	assert.Equal(t, "1", ops[0]["a"])
	assert.Equal(t, model.Unknown, ops[0]["b"])
	assert.Equal(t, model.Unknown, ops[0]["c"])

	assert.Len(t, ops[1], 3, "extra fields are dropped")
	assert.Equal(t, "3", ops[1]["c"])
}

func TestParseOpportunityCSV_CRLF(t *testing.T) {
	ops := ParseOpportunityCSV("title,type\r\nA,Solicitation\r\n")
	require.Len(t, ops, 1)
	assert.Equal(t, "Solicitation", ops[0]["type"])
}

func TestSplitCSVLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"empty fields", ",,", []string{"", "", ""}},
		{"quoted comma", `"a,b",c`, []string{"a,b", "c"}},
		{"doubled quote", `"say ""hi""",x`, []string{`say "hi"`, "x"}},
		{"unterminated quote", `"a,b`, []string{"a,b"}},
		{"single", "only", []string{"only"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCSVLine(tt.in))
		})
	}
}
