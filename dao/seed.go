package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/FAIRDataPipeline/data-registry/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	exampleUsername = "exampleusera"
	exampleGitHub   = "https://github.com/"
)

// SeedSummary reports the ids created by SeedExampleData.
type SeedSummary struct {
	ParametersID uint `json:"parameters_data_product"`
	ModelOutput  uint `json:"model_output_data_product"`
	ComparisonID uint `json:"comparison_data_product"`
	ModelRunID   uint `json:"model_code_run"`
	CompareRunID uint `json:"comparison_code_run"`
}

func strPtr(s string) *string {
	return &s
}

// SeedExampleData inserts a small SEIRS pipeline: parameters -> model run -> outputs -> comparison run -> figure.
// It returns ErrAlreadyExists when the example user is present.
func SeedExampleData(ctx context.Context, dbConn *gorm.DB) (SeedSummary, error) {
	logger := daoLogger().With("func", "SeedExampleData")

	conn, err := withContext(dbConn, ctx)
	if err != nil {
		return SeedSummary{}, fmt.Errorf("seed example data failed: %w", err)
	}

	var existing int64
	if err := conn.Model(&entity.User{}).Where("username = ?", exampleUsername).Count(&existing).Error; err != nil {
		return SeedSummary{}, fmt.Errorf("check example user failed: %w", err)
	}
	if existing > 0 {
		logger.Info("example data already present")
		return SeedSummary{}, ErrAlreadyExists
	}

	var summary SeedSummary
	err = conn.Transaction(func(tx *gorm.DB) error {
		s := seeder{tx: tx}
		s.seed(&summary)
		return s.err
	})
	if err != nil {
		return SeedSummary{}, fmt.Errorf("seed example data failed: %w", err)
	}

	logger.Info("example data seeded",
		"parameters", summary.ParametersID,
		"comparison", summary.ComparisonID,
		"model_run", summary.ModelRunID,
	)
	return summary, nil
}

// seeder keeps the first error so the seed script reads top to bottom.
type seeder struct {
	tx  *gorm.DB
	err error
}

func (s *seeder) create(v interface{}) {
	if s.err != nil {
		return
	}
	if err := s.tx.Create(v).Error; err != nil {
		s.err = err
	}
}

func (s *seeder) object(user *entity.User, root *entity.StorageRoot, path, hash string, ft *entity.FileType, description string, authors ...entity.Author) (*entity.Object, *entity.ObjectComponent) {
	loc := &entity.StorageLocation{Path: path, Hash: hash, Public: true, StorageRootID: root.ID, UpdatedByID: user.ID}
	s.create(loc)

	obj := &entity.Object{UUID: uuid.NewString(), StorageLocationID: &loc.ID, Authors: authors, UpdatedByID: user.ID}
	if ft != nil {
		obj.FileTypeID = &ft.ID
	}
	if description != "" {
		obj.Description = strPtr(description)
	}
	s.create(obj)

	whole := &entity.ObjectComponent{ObjectID: obj.ID, Name: entity.WholeObjectComponentName, WholeObject: true, UpdatedByID: user.ID}
	s.create(whole)
	return obj, whole
}

func (s *seeder) seed(summary *SeedSummary) {
	user := &entity.User{Username: exampleUsername}
	s.create(user)

	csv := &entity.FileType{Name: "Comma-Separated Values File", Extension: "csv"}
	yml := &entity.FileType{Name: "YAML Document", Extension: "yaml"}
	sh := &entity.FileType{Name: "Bash Shell Script", Extension: "sh"}
	git := &entity.FileType{Name: "git", Extension: "git"}
	pdf := &entity.FileType{Name: "pdf", Extension: "pdf"}
	for _, ft := range []*entity.FileType{csv, yml, sh, git, pdf} {
		s.create(ft)
	}

	author1 := &entity.Author{Name: "Author 1", UUID: uuid.NewString(), UpdatedByID: user.ID}
	author2 := &entity.Author{Name: "Author 2", UUID: uuid.NewString(), Identifier: strPtr("https://orcid.org/0000-0002-1825-0097"), UpdatedByID: user.ID}
	author3 := &entity.Author{Name: "Author 3", UUID: uuid.NewString(), UpdatedByID: user.ID}
	for _, a := range []*entity.Author{author1, author2, author3} {
		s.create(a)
	}
	s.create(&entity.UserAuthor{UserID: user.ID, AuthorID: author3.ID})

	local := &entity.StorageRoot{Root: "file:///Users/user_home/.fair/data/", Local: true, UpdatedByID: user.ID}
	github := &entity.StorageRoot{Root: exampleGitHub, UpdatedByID: user.ID}
	s.create(local)
	s.create(github)

	params, paramsWhole := s.object(user, local, "PSU/SEIRS_model/parameters/1.0.0.csv",
		"6294a5951677e6b8438cabf55234b7974adeaee3", csv, "Static parameters of the model", *author1)
	config, _ := s.object(user, local, "data/jobs/2021-10-07_12_14_00_128346/config.yaml",
		"6ed2ca688a71c3964597f64eac5249ffcf80bf7f", yml, "Working config.yaml file location in local datastore", *author2)
	script, _ := s.object(user, local, "data/jobs/2021-10-07_12_14_00_128346/script.sh",
		"89961dc1ec5e622fa68e678495569f10f0f285bb", sh, "Submission script location in local datastore", *author2)
	repo, _ := s.object(user, github, "FAIRDataPipeline/rSimpleModel/repository",
		"b7e5fb2f1b1b2c5bd5f1b9b7e1b0e0f6a71f4e63", git, "Analysis / processing script location", *author1, *author2)
	output, outputWhole := s.object(user, local, "user_1/SEIRS_model/results/model_output/R/0.0.1.csv",
		"c0a5a0a5c1d0f1f0d3c6b1b0e4a7f2b2c1d0e9f8", csv, "SEIRS model results", *author3)
	figure, figureWhole := s.object(user, local, "user_1/SEIRS_model/results/figure/R/0.0.1.pdf",
		"a9f8e7d6c5b4a3f2e1d0c9b8a7f6e5d4c3b2a1f0", pdf, "SEIRS model results", *author3)
	cmpScript, _ := s.object(user, local, "data/jobs/2021-10-07_12_17_10_000000/script.sh",
		"0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c", sh, "Submission script location in local datastore", *author3)
	cmpFigure, cmpFigureWhole := s.object(user, local, "user_1/SEIRS_model/results/comparison/0.0.1.pdf",
		"1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d", pdf, "Comparison of SEIRS model implementations", *author3)

	s.create(&entity.Licence{ObjectID: params.ID, LicenceInfo: "Creative Commons Attribution 4.0", Identifier: strPtr("https://creativecommons.org/licenses/by/4.0/"), UpdatedByID: user.ID})
	s.create(&entity.Licence{ObjectID: cmpFigure.ID, LicenceInfo: "Open Government Licence v3.0", UpdatedByID: user.ID})
	s.create(&entity.CodeRepoRelease{ObjectID: repo.ID, Name: "SimpleModel", Version: "1.0.0", Website: strPtr(exampleGitHub), UpdatedByID: user.ID})

	modelRun := &entity.CodeRun{
		UUID:               uuid.NewString(),
		RunDate:            time.Date(2021, 10, 7, 12, 14, 2, 0, time.UTC),
		Description:        strPtr("SEIRS Model R"),
		CodeRepoID:         &repo.ID,
		ModelConfigID:      &config.ID,
		SubmissionScriptID: script.ID,
		Inputs:             []entity.ObjectComponent{*paramsWhole},
		Outputs:            []entity.ObjectComponent{*outputWhole, *figureWhole},
		UpdatedByID:        user.ID,
	}
	s.create(modelRun)

	compareRun := &entity.CodeRun{
		UUID:               uuid.NewString(),
		RunDate:            time.Date(2021, 10, 7, 12, 17, 10, 0, time.UTC),
		Description:        strPtr("SEIRS Model comparison"),
		SubmissionScriptID: cmpScript.ID,
		Inputs:             []entity.ObjectComponent{*outputWhole},
		Outputs:            []entity.ObjectComponent{*cmpFigureWhole},
		UpdatedByID:        user.ID,
	}
	s.create(compareRun)

	psu := &entity.Namespace{Name: "PSU", FullName: strPtr("Pennsylvania State University"), Website: strPtr("https://ror.org/04p491231")}
	user1 := &entity.Namespace{Name: "user_1", FullName: strPtr("Example user 1")}
	s.create(psu)
	s.create(user1)

	paramsDP := &entity.DataProduct{ObjectID: params.ID, NamespaceID: psu.ID, Name: "SEIRS_model/parameters", Version: "1.0.0", UpdatedByID: user.ID}
	outputDP := &entity.DataProduct{ObjectID: output.ID, NamespaceID: user1.ID, Name: "SEIRS_model/results/model_output/R", Version: "0.0.1", UpdatedByID: user.ID}
	figureDP := &entity.DataProduct{ObjectID: figure.ID, NamespaceID: user1.ID, Name: "SEIRS_model/results/figure/R", Version: "0.0.1", UpdatedByID: user.ID}
	cmpDP := &entity.DataProduct{ObjectID: cmpFigure.ID, NamespaceID: user1.ID, Name: "SEIRS_model/results/comparison", Version: "0.0.1", UpdatedByID: user.ID}
	for _, dp := range []*entity.DataProduct{paramsDP, outputDP, figureDP, cmpDP} {
		s.create(dp)
	}

	s.create(&entity.ExternalObject{
		DataProductID:        paramsDP.ID,
		Title:                "Static parameters of the model",
		ReleaseDate:          time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
		Identifier:           strPtr("https://doi.org/10.1038/s41586-020-2012-7"),
		Description:          strPtr("Parameters extracted from a published study"),
		PrimaryNotSupplement: false,
		UpdatedByID:          user.ID,
	})

	if s.err != nil {
		return
	}
	*summary = SeedSummary{
		ParametersID: paramsDP.ID,
		ModelOutput:  outputDP.ID,
		ComparisonID: cmpDP.ID,
		ModelRunID:   modelRun.ID,
		CompareRunID: compareRun.ID,
	}
}
