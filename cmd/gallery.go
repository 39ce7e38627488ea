package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/camden-git/facebench/config"
	"github.com/camden-git/facebench/media"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "List and check the reference photos",
	Long: `Lists the identities in GALLERY_PATH (one photo per person, named after the
person) and checks that each photo has exactly one detectable face.`,
	Args: cobra.NoArgs,
	RunE: runGallery,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.Flags().Bool("skip-check", false, "Only list identities, do not run face detection")
}

func runGallery(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	gallery, err := media.ListGallery(cfg.GalleryPath)
	if err != nil {
		return err
	}

	faces := map[string]int{}
	check := !mustGetBool(cmd, "skip-check")
	if check {
		recognizer, err := buildRecognizer(cfg, gallery)
		if err != nil {
			return err
		}
		defer recognizer.Close()
		faces = recognizer.Validate()
	}

	fmt.Printf("\nLoaded %d faces from %s:\n", len(gallery), cfg.GalleryPath)
	rows := make([][]string, 0, len(gallery))
	problems := 0
	for _, entry := range gallery {
		status := "-"
		if check {
			switch n := faces[entry.Identity]; n {
			case 1:
				status = "ok"
			case 0:
				status = "no face found"
				problems++
			default:
				status = fmt.Sprintf("%d faces, the largest is used", n)
				problems++
			}
		}
		rows = append(rows, []string{entry.Identity, filepath.Base(entry.Path), status})
	}
	fmt.Println(renderTable([]string{"Identity", "File", "Check"}, rows))

	if problems > 0 {
		fmt.Printf("Warning: %d reference photos need attention\n", problems)
	}
	return nil
}
