package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/damian-dev1/freight-matrix-hn/config"
	"github.com/damian-dev1/freight-matrix-hn/profile"
)

// ProfilesCmd lists vendor profiles.
var ProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List vendor profiles",
	Long: `List vendor profiles: id pattern, normalization rules, and delivery
target overrides. Profiles are created automatically with defaults the first
time a vendor is ingested.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		conn, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		profiles, err := profile.NewStore(conn).List()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			pterm.Info.Println("No vendor profiles yet")
			return nil
		}

		data := pterm.TableData{
			{"Vendor", "Name", "ID pattern", "Postcode len", "Zero pad", "Uppercase", "Database", "Container", "Write mode"},
		}
		for _, p := range profiles {
			data = append(data, []string{
				p.VendorID,
				p.Name,
				p.IDPattern,
				pterm.Sprintf("%d", p.PostcodeLength),
				pterm.Sprintf("%t", p.ZeroPad),
				pterm.Sprintf("%t", p.Uppercase),
				p.TargetDatabase,
				p.TargetContainer,
				p.WriteMode,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}
