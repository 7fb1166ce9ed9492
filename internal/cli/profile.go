package cli

import (
	"github.com/spf13/cobra"

	"example.com/fittrack/internal/domain"
)

func newProfileCommand(s *session) *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Show or change goals and biometrics",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := s.profiles.GetProfile(cmd.Context(), s.userID)
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}

	var (
		stepGoal int
		weight   float64
		height   float64
		age      int
		gender   string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Update only the given fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var patch domain.ProfilePatch
			flags := cmd.Flags()
			if flags.Changed("step-goal") {
				patch.StepGoal = &stepGoal
			}
			if flags.Changed("weight") {
				patch.Weight = &weight
			}
			if flags.Changed("height") {
				patch.Height = &height
			}
			if flags.Changed("age") {
				patch.Age = &age
			}
			if flags.Changed("gender") {
				g, err := domain.ParseGender(gender)
				if err != nil {
					g = domain.Gender(gender)
				}
				patch.Gender = &g
			}

			p, err := s.profiles.UpdateProfile(cmd.Context(), s.userID, patch)
			if err != nil {
				return err
			}
			printProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}
	set.Flags().IntVar(&stepGoal, "step-goal", 0, "Daily step goal, 1000 to 100000")
	set.Flags().Float64Var(&weight, "weight", 0, "Weight in kg, 20 to 300")
	set.Flags().Float64Var(&height, "height", 0, "Height in cm, 100 to 250")
	set.Flags().IntVar(&age, "age", 0, "Age in years, 1 to 150")
	set.Flags().StringVar(&gender, "gender", "", "male or female")

	profile.AddCommand(show, set)
	return profile
}
