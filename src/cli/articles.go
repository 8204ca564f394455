package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/localagent/agentblog/src/services"
	"github.com/spf13/cobra"
)

// ArticlesCmd publishes and lists articles
func ArticlesCmd(opts *rootOptions) *cobra.Command {
	articlesCmd := &cobra.Command{
		Use:   "articles",
		Short: "Publish and list articles",
	}

	var in services.ArticleInput
	var contentFile, imageFile string
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an article",
		Long: `Publishes an article immediately. The body comes from --content or,
for longer posts, from --content-file. An optional --image is embedded as a data URI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				// #nosec G304 -- path comes from the operator
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("failed to read content file: %w", err)
				}
				in.Content = string(data)
			}
			if imageFile != "" {
				uri, err := imageDataURI(imageFile)
				if err != nil {
					return err
				}
				in.ImageData = uri
			}

			return withServices(cmd.Context(), opts.configPath, func(a *app) error {
				published, err := a.articles.Publish(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("failed to publish article: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Published article %d (%s)\n", published.ID, published.Slug)
				fmt.Fprintln(out, published.URL)
				return nil
			})
		},
	}
	publishCmd.Flags().StringVar(&in.Title, "title", "", "Article title")
	publishCmd.Flags().StringVar(&in.Excerpt, "excerpt", "", "Short summary shown in listings")
	publishCmd.Flags().StringVar(&in.Content, "content", "", "Article body")
	publishCmd.Flags().StringVar(&contentFile, "content-file", "", "Read the article body from a file")
	publishCmd.Flags().StringVar(&imageFile, "image", "", "PNG, JPEG or WebP cover image")
	publishCmd.MarkFlagsMutuallyExclusive("content", "content-file")
	articlesCmd.AddCommand(publishCmd)

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent published articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), opts.configPath, func(a *app) error {
				articles, err := a.articles.ListRecent(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("failed to list articles: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(articles) == 0 {
					fmt.Fprintln(out, "No articles published.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSLUG\tTITLE\tPUBLISHED")
				fmt.Fprintln(w, "--\t----\t-----\t---------")
				for _, art := range articles {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", art.ID, art.Slug, truncate(art.Title, 50), art.CreatedAt.Format(timeLayout))
				}
				return w.Flush()
			})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", services.DefaultArticleLimit, "Maximum number of articles")
	articlesCmd.AddCommand(listCmd)

	return articlesCmd
}

var imageTypes = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".webp": "webp",
}

// imageDataURI reads an image file into a base64 data URI
func imageDataURI(path string) (string, error) {
	kind, ok := imageTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", errors.New("image must be a .png, .jpg, .jpeg or .webp file")
	}
	// #nosec G304 -- path comes from the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return "data:image/" + kind + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
