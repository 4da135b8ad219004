package reconcile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/registry"
)

// jobsFile là cấu trúc file YAML định nghĩa job
//
//	jobs:
//	  - name: machines
//	    legacy: {collection: Machine, keyField: codigo}
//	    ...
type jobsFile struct {
	Jobs []*Job `yaml:"jobs"`
}

// ParseJobs đọc định nghĩa job từ YAML và validate từng job
func ParseJobs(data []byte) ([]*Job, error) {
	var f jobsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, common.Wrap(common.ErrJobInvalid, fmt.Errorf("parse yaml: %w", err))
	}
	seen := make(map[string]bool, len(f.Jobs))
	for _, job := range f.Jobs {
		if job == nil {
			return nil, common.Wrap(common.ErrJobInvalid, fmt.Errorf("job rỗng trong file"))
		}
		if err := job.Validate(); err != nil {
			return nil, err
		}
		if seen[job.Name] {
			return nil, common.Wrap(common.ErrJobInvalid, fmt.Errorf("job %q khai báo hai lần", job.Name))
		}
		seen[job.Name] = true
	}
	return f.Jobs, nil
}

// LoadJobsFile đọc file YAML định nghĩa job
func LoadJobsFile(path string) ([]*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("không đọc được file job %s: %w", path, err)
	}
	return ParseJobs(data)
}

// Catalog là registry các job theo tên
type Catalog = registry.Registry[*Job]

// NewCatalog tạo catalog gồm job có sẵn, sau đó job trong file (nếu có) ghi đè theo tên
func NewCatalog(jobsFilePath string) (*Catalog, error) {
	catalog := registry.NewRegistry[*Job]()
	for _, job := range BuiltinJobs() {
		if _, err := catalog.Register(job.Name, job); err != nil {
			return nil, err
		}
	}
	if jobsFilePath == "" {
		return catalog, nil
	}

	jobs, err := LoadJobsFile(jobsFilePath)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if _, err := catalog.Register(job.Name, job); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// LookupJob lấy job theo tên, trả về common.ErrJobNotFound nếu không có
func LookupJob(catalog *Catalog, name string) (*Job, error) {
	job, ok := catalog.Get(name)
	if !ok {
		return nil, common.Wrap(common.ErrJobNotFound, fmt.Errorf("job %q", name))
	}
	return job, nil
}
