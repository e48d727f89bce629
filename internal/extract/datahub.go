package extract

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/oncofreq/internal/maf"
	"github.com/inodb/oncofreq/internal/mutation"
)

// Datahub extracts studies from local cBioPortal datahub study directories.
// Each directory holds meta_study.txt, data_mutations*.txt and case_lists/.
type Datahub struct {
	Dirs   []string
	logger *zap.Logger
}

// NewDatahub creates a datahub extractor over study directories.
func NewDatahub(dirs []string) *Datahub {
	return &Datahub{Dirs: dirs, logger: zap.NewNop()}
}

// SetLogger sets the logger.
func (d *Datahub) SetLogger(l *zap.Logger) {
	d.logger = l
}

func (d *Datahub) Name() string { return "datahub" }

// Extract reads every study directory. A directory that cannot be read is
// skipped with a warning.
func (d *Datahub) Extract(ctx context.Context) (*RawBatch, error) {
	batch := &RawBatch{Name: d.Name(), Source: mutation.SourceCBioPortal, ExtractedAt: time.Now().UTC()}
	for _, dir := range d.Dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		study, muts, err := ReadStudyDir(dir)
		if err != nil {
			batch.warn(d.logger, "study directory %s skipped: %v", dir, err)
			continue
		}
		batch.Studies = append(batch.Studies, study)
		batch.Mutations = append(batch.Mutations, muts...)
	}
	if len(batch.Studies) == 0 && len(d.Dirs) > 0 {
		return nil, fmt.Errorf("datahub: all %d study directories failed", len(d.Dirs))
	}
	return batch, nil
}

// ReadStudyDir reads one datahub study into raw cBioPortal study metadata and
// mutations. The sequenced and all case lists supply the sample counts.
func ReadStudyDir(dir string) (map[string]any, []map[string]any, error) {
	meta, err := readMetaFile(filepath.Join(dir, "meta_study.txt"))
	if err != nil {
		return nil, nil, err
	}
	studyID := meta["cancer_study_identifier"]
	if studyID == "" {
		return nil, nil, fmt.Errorf("meta_study.txt: missing cancer_study_identifier")
	}

	study := map[string]any{
		"studyId":      studyID,
		"name":         meta["name"],
		"cancerTypeId": meta["type_of_cancer"],
	}
	for file, field := range map[string]string{
		"cases_sequenced.txt": "sequencedSampleCount",
		"cases_all.txt":       "allSampleCount",
	} {
		n, err := caseListSize(filepath.Join(dir, "case_lists", file))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, nil, err
		}
		study[field] = n
	}

	files, err := filepath.Glob(filepath.Join(dir, "data_mutations*"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)

	var muts []map[string]any
	for _, f := range files {
		recs, err := readMAF(f)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range recs {
			muts = append(muts, r.Map(studyID))
		}
	}
	return study, muts, nil
}

func readMAF(path string) ([]*maf.Record, error) {
	p, err := maf.NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.ReadAll()
}

// readMetaFile parses a cBioPortal "key: value" meta file.
func readMetaFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// caseListSize counts the ids of a case list file.
func caseListSize(path string) (int, error) {
	meta, err := readMetaFile(path)
	if err != nil {
		return 0, err
	}
	return len(strings.Fields(meta["case_list_ids"])), nil
}
