package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

var (
	mediaTypeFlag string
	outputJSON    bool
	payloadFlag   string
)

var searchCmd = &cobra.Command{
	Use:   "search <source> <keyword>",
	Short: "Search one metadata source",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

var detailsCmd = &cobra.Command{
	Use:   "details <source> <id>",
	Short: "Fetch the details of one item from a metadata source",
	Args:  cobra.ExactArgs(2),
	RunE:  runDetails,
}

var aliasesCmd = &cobra.Command{
	Use:   "aliases <keyword>",
	Short: "Collect alias titles from every source enabled for auxiliary search",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAliases,
}

var actionCmd = &cobra.Command{
	Use:   "action <source> <action>",
	Short: "Run a source specific action",
	Long: `Run a source specific action, for example:

  mediameta action tmdb get_episode_groups --payload '{"tmdbId": "209867"}'
  mediameta action bangumi get_auth_url --user-id 1`,
	Args: cobra.ExactArgs(2),
	RunE: runAction,
}

var mappingsCmd = &cobra.Command{
	Use:   "mappings <tmdb-tv-id> [episode-group-id]",
	Short: "Show stored TMDB episode mappings, or replace them from an episode group",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runMappings,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, detailsCmd} {
		c.Flags().StringVarP(&mediaTypeFlag, "type", "t", "", "Media type: tv or movie")
	}
	for _, c := range []*cobra.Command{searchCmd, detailsCmd, aliasesCmd, mappingsCmd} {
		c.Flags().BoolVar(&outputJSON, "json", false, "Print the result as JSON")
	}
	actionCmd.Flags().StringVarP(&payloadFlag, "payload", "p", "", "Action payload as a JSON object")

	rootCmd.AddCommand(searchCmd, detailsCmd, aliasesCmd, actionCmd, mappingsCmd)
}

func parseMediaType(s string) (provider.MediaType, error) {
	mt := provider.MediaType(strings.ToLower(strings.TrimSpace(s)))
	if mt != provider.MediaTypeAny && !mt.Valid() {
		return "", fmt.Errorf("invalid media type %q: use tv or movie", s)
	}
	return mt, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	mediaType, err := parseMediaType(mediaTypeFlag)
	if err != nil {
		return err
	}
	keyword := strings.Join(args[1:], " ")
	records, err := app.registry.Search(cmd.Context(), args[0], keyword, currentUser(), mediaType)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), records)
	}
	if len(records) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No results for %q\n", keyword)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), recordsTable(records))
	return nil
}

func runDetails(cmd *cobra.Command, args []string) error {
	mediaType, err := parseMediaType(mediaTypeFlag)
	if err != nil {
		return err
	}
	record, err := app.registry.Details(cmd.Context(), args[0], args[1], currentUser(), mediaType)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), record)
	}
	if record == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s has no item %q\n", args[0], args[1])
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), recordText(*record))
	return nil
}

func runAliases(cmd *cobra.Command, args []string) error {
	keyword := strings.Join(args, " ")
	aliases := app.registry.SearchAliasesFromEnabled(cmd.Context(), keyword, currentUser()).Sorted()
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), aliases)
	}
	for _, alias := range aliases {
		fmt.Fprintln(cmd.OutOrStdout(), alias)
	}
	return nil
}

func runAction(cmd *cobra.Command, args []string) error {
	payload := map[string]any{}
	if payloadFlag != "" {
		if err := json.Unmarshal([]byte(payloadFlag), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}
	result, err := app.registry.ExecuteAction(cmd.Context(), args[0], args[1], payload, currentUser(), nil)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func runMappings(cmd *cobra.Command, args []string) error {
	tvID, err := strconv.Atoi(args[0])
	if err != nil || tvID <= 0 {
		return fmt.Errorf("invalid TMDB tv id %q", args[0])
	}
	ctx := cmd.Context()
	if len(args) == 2 {
		if err := app.registry.UpdateTMDBMappings(ctx, tvID, args[1], currentUser()); err != nil {
			return err
		}
	}

	mappings, err := app.store.EpisodeMappings(ctx, tvID)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), mappings)
	}
	if len(mappings) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No episode mappings stored for %d\n", tvID)
		return nil
	}
	rows := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []string{
			strconv.Itoa(m.AbsoluteIndex),
			fmt.Sprintf("S%02dE%02d", m.SeasonNumber, m.EpisodeNumber),
			fmt.Sprintf("S%02dE%02d", m.CustomSeason, m.CustomEpisode),
			strconv.Itoa(m.EpisodeID),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), newTable([]string{"#", "TMDB", "Group", "Episode ID"}, rows, nil))
	return nil
}
