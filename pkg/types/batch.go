// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data types and stage configuration for the
// mdscan pipeline.
package types

import "time"

// BatchResult is the final output of one batch conversion: the merged
// Markdown document, the consolidated image directory, and the packaged
// archive. Immutable once returned.
type BatchResult struct {
	// OutputDir is the directory holding the merged Markdown and images.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MarkdownFile is the path of the merged Markdown document.
	MarkdownFile string `json:"markdown_file" yaml:"markdown_file"`

	// ImagesDir is the consolidated image directory. Empty when the batch
	// produced no images.
	ImagesDir string `json:"images_dir,omitempty" yaml:"images_dir,omitempty"`

	// ZipFile is the packaged archive of the whole result tree.
	ZipFile string `json:"zip_file" yaml:"zip_file"`

	// ImageCount is the total number of successfully extracted images.
	ImageCount int `json:"image_count" yaml:"image_count"`
}

// FetchResult is the output of the article-download stage: the sanitized
// title, the per-article result directory, and the ordered list of saved
// image paths.
type FetchResult struct {
	Title     string   `json:"title" yaml:"title"`
	ResultDir string   `json:"result_dir" yaml:"result_dir"`
	ImagesDir string   `json:"images_dir" yaml:"images_dir"`
	Images    []string `json:"images" yaml:"images"`
}

// ConversionRecord is one entry in the conversion history.
type ConversionRecord struct {
	ID           int64     `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	MarkdownFile string    `json:"markdown_file" yaml:"markdown_file"`
	ZipFile      string    `json:"zip_file" yaml:"zip_file"`
	ImageCount   int       `json:"image_count" yaml:"image_count"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}
