package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"statutelink/pkg/extract"
	"statutelink/pkg/models"
)

func extractLinksCmd() *cobra.Command {
	var minConfidence float64

	cmd := &cobra.Command{
		Use:   "extract-links",
		Short: "Run rule-based interpretation-link extraction over case paragraphs",
		Long: `Scan every case paragraph for statute references, classify how the
paragraph treats the provision, and upsert the candidates into the link
store. Candidates are unverified; re-runs merge by keeping the
higher-confidence record.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := loadConfigAndStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			statuteSections, err := store.DocumentsByTypeLevel(ctx, models.DocTypeStatute, -1)
			if err != nil {
				return err
			}
			ruleSections, err := store.DocumentsByTypeLevel(ctx, models.DocTypeRule, -1)
			if err != nil {
				return err
			}
			index := extract.BuildStatuteIndex(append(statuteSections, ruleSections...))

			paragraphs, err := store.DocumentsByTypeLevel(ctx, models.DocTypeCase, 1)
			if err != nil {
				return err
			}

			extractor := &extract.RuleBasedExtractor{MinConfidence: minConfidence}
			candidates, upserted := 0, 0
			for _, para := range paragraphs {
				for _, link := range extractor.Extract(para, index) {
					candidates++
					if err := store.UpsertLink(ctx, link); err != nil {
						log.Printf("[EXTRACT] upsert %s->%s failed: %v", link.StatuteID, link.CaseID, err)
						continue
					}
					upserted++
				}
			}

			fmt.Printf("extraction complete: %d paragraphs scanned, %d candidates, %d upserted\n",
				len(paragraphs), candidates, upserted)
			return nil
		},
	}

	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.5, "drop candidates below this confidence")
	return cmd
}

func populateLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "populate-links",
		Short: "Seed the link store with the curated sample links",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := loadConfigAndStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			added := 0
			for _, link := range sampleLinks() {
				if err := store.UpsertLink(ctx, link); err != nil {
					log.Printf("[LINKS] %s -> %s failed: %v", link.StatuteID, link.CaseID, err)
					continue
				}
				added++
			}
			fmt.Printf("populated %d interpretation links\n", added)
			return nil
		},
	}
}

// sampleLinks is the hand-curated seed set used before extraction jobs have
// produced anything. Both ends must already exist in the document store.
func sampleLinks() []*models.InterpretationLink {
	now := time.Now().UTC()
	return []*models.InterpretationLink{
		{
			StatuteID:          "misrepresentation_act_s2",
			CaseID:             "2013_sgca_36_para_158",
			StatuteName:        "Misrepresentation Act 1967",
			StatuteSection:     "2",
			StatuteText:        "Where a person has entered into a contract after a misrepresentation...",
			CaseName:           "Wee Chiaw Sek Anna v Ng Li-Ann Genevieve",
			CaseCitation:       "[2013] SGCA 36",
			CaseParaNo:         158,
			CaseText:           "Section 2 of the Misrepresentation Act does not impose a general duty to disclose...",
			Court:              "SGCA",
			Year:               2013,
			InterpretationType: models.InterpretNarrow,
			Authority:          models.AuthorityBinding,
			Holding:            "Section 2 applies only to fiduciary relationships, not all contractual relationships",
			FactPatternTags:    []string{"silence", "fiduciary_duty", "contract"},
			CaseFactsSummary:   "Sale of shares between family members with non-disclosure",
			ApplicabilityScore: 0.9,
			CauseOfAction:      "misrepresentation",
			BoostFactor:        2.8,
			Verified:           true,
			VerifiedBy:         "legal_researcher_1",
			VerifiedAt:         &now,
			ExtractionMethod:   models.ExtractManual,
			Confidence:         1.0,
			Notes:              "Landmark SGCA case on duty to disclose",
		},
		{
			StatuteID:          "patents_act_s80",
			CaseID:             "2020_sgca_50_para_45",
			StatuteName:        "Patents Act 1994",
			StatuteSection:     "80",
			StatuteText:        "In any proceedings for infringement of a patent, the defendant may apply...",
			CaseName:           "Lee Tat Development Pte Ltd v MCST Plan No 301",
			CaseCitation:       "[2020] SGCA 50",
			CaseParaNo:         45,
			CaseText:           "The test for striking out under Section 80 requires \"plainly and obviously\" unsustainable...",
			Court:              "SGCA",
			Year:               2020,
			InterpretationType: models.InterpretClarify,
			Authority:          models.AuthorityBinding,
			Holding:            "Clarified the \"plain and obvious\" test for striking out patent claims",
			FactPatternTags:    []string{"strike_out", "patent_infringement", "procedure"},
			CaseFactsSummary:   "Application to strike out patent infringement claim",
			ApplicabilityScore: 0.95,
			CauseOfAction:      "patent_infringement",
			BoostFactor:        2.5,
			Verified:           true,
			VerifiedBy:         "legal_researcher_1",
			VerifiedAt:         &now,
			ExtractionMethod:   models.ExtractManual,
			Confidence:         1.0,
			Notes:              "Key case on strike-out test",
		},
		{
			StatuteID:          "rules_of_court_2021_o_9_r_16",
			CaseID:             "2022_sghc_100_para_23",
			StatuteName:        "Rules of Court 2021",
			StatuteSection:     "Order 9 Rule 16",
			StatuteText:        "The Court may strike out any pleading or part thereof...",
			CaseName:           "ABC Co Ltd v XYZ Ltd",
			CaseCitation:       "[2022] SGHC 100",
			CaseParaNo:         23,
			CaseText:           "Order 9 Rule 16 must be read harmoniously with the overriding objective...",
			Court:              "SGHC",
			Year:               2022,
			InterpretationType: models.InterpretPurposive,
			Authority:          models.AuthorityPersuasive,
			Holding:            "Emphasized purposive approach to procedural rules",
			FactPatternTags:    []string{"civil_procedure", "strike_out", "pleadings"},
			CaseFactsSummary:   "Application to strike out allegedly defective pleadings",
			ApplicabilityScore: 0.85,
			CauseOfAction:      "civil_procedure",
			BoostFactor:        2.0,
			Verified:           true,
			VerifiedBy:         "legal_researcher_1",
			VerifiedAt:         &now,
			ExtractionMethod:   models.ExtractManual,
			Confidence:         1.0,
			Notes:              "Illustrates purposive interpretation",
		},
	}
}
