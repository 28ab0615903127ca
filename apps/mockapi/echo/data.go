package echoapi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/session"
)

// Collections served by the emulated APIs.
const (
	Students          = "students"
	Teachers          = "teachers"
	Courses           = "courses"
	Buses             = "buses"
	Subjects          = "subjects"
	CourseSessions    = "course-sessions"
	StudentAttendance = "student-attendance"
	Governments       = "governments"
	Employees         = "employees"
)

var errAccountExists = errors.New("account already exists")

type account struct {
	ID           int
	Name         string
	Email        string
	Role         string
	GovernmentID int
	PasswordHash []byte
}

func (a *account) setPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.MinCost)
	if err != nil {
		return errors.Wrap(err, "generating password hash")
	}
	a.PasswordHash = hash
	return nil
}

func (a account) checkPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

type collection struct {
	lastID  int
	records []core.Record
}

// Data is the in-memory state of the emulated APIs. It is safe for concurrent use.
type Data struct {
	mu          sync.RWMutex
	accounts    []account
	collections map[string]*collection
	complaints  []core.Record
}

func NewData() *Data {
	return &Data{collections: make(map[string]*collection)}
}

// AddAccount registers a user able to log in.
func (d *Data) AddAccount(name, email, password, role string, governmentID int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	email = core.CleanString(email, true /* lower */)
	for _, acc := range d.accounts {
		if acc.Email == email {
			return 0, errAccountExists
		}
	}
	acc := account{ID: len(d.accounts) + 1, Name: name, Email: email, Role: role, GovernmentID: governmentID}
	if err := acc.setPassword(password); err != nil {
		return 0, err
	}
	d.accounts = append(d.accounts, acc)
	return acc.ID, nil
}

func (d *Data) authenticate(email, password string) (account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	email = core.CleanString(email, true /* lower */)
	for _, acc := range d.accounts {
		if acc.Email == email {
			return acc, acc.checkPassword(password) == nil
		}
	}
	return account{}, false
}

func (d *Data) account(id int) (account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, acc := range d.accounts {
		if acc.ID == id {
			return acc, true
		}
	}
	return account{}, false
}

// Insert adds a record to a collection, assigning its id.
func (d *Data) Insert(name string, rec core.Record) core.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insert(name, rec)
}

func (d *Data) insert(name string, rec core.Record) core.Record {
	c, ok := d.collections[name]
	if !ok {
		c = new(collection)
		d.collections[name] = c
	}
	c.lastID++
	stored := copyRecord(rec)
	stored["id"] = c.lastID
	c.records = append(c.records, stored)
	return copyRecord(stored)
}

func (d *Data) list(name string) []core.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records := make([]core.Record, 0)
	if c, ok := d.collections[name]; ok {
		for _, rec := range c.records {
			records = append(records, copyRecord(rec))
		}
	}
	return records
}

func (d *Data) filter(name string, keep func(core.Record) bool) []core.Record {
	records := make([]core.Record, 0)
	for _, rec := range d.list(name) {
		if keep(rec) {
			records = append(records, rec)
		}
	}
	return records
}

func (d *Data) get(name, id string) (core.Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.indexOf(name, id); i >= 0 {
		return copyRecord(d.collections[name].records[i]), true
	}
	return nil, false
}

// update merges `rec` into the stored record, or replaces it entirely.
func (d *Data) update(name, id string, rec core.Record, replace bool) (core.Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.indexOf(name, id)
	if i < 0 {
		return nil, false
	}
	stored := d.collections[name].records[i]
	if replace {
		stored = core.Record{"id": stored["id"]}
	}
	for k, v := range rec {
		if k != "id" {
			stored[k] = v
		}
	}
	d.collections[name].records[i] = stored
	return copyRecord(stored), true
}

func (d *Data) remove(name, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.indexOf(name, id)
	if i < 0 {
		return false
	}
	c := d.collections[name]
	c.records = append(c.records[:i], c.records[i+1:]...)
	return true
}

// taken reports whether another record of the collection has the same `key` value.
func (d *Data) taken(name, key, value, exceptID string) bool {
	value = core.CleanString(value, true /* lower */)
	if value == "" {
		return false
	}
	for _, rec := range d.list(name) {
		if rec.String("id") != exceptID && core.CleanString(rec.String(key), true /* lower */) == value {
			return true
		}
	}
	return false
}

func (d *Data) indexOf(name, id string) int {
	c, ok := d.collections[name]
	if !ok {
		return -1
	}
	for i, rec := range c.records {
		if rec.String("id") == id {
			return i
		}
	}
	return -1
}

// AddComplaint files a complaint of the given citizen account against a government entity.
func (d *Data) AddComplaint(citizenID, governmentID int, kind, description string, createdAt time.Time) (core.Record, error) {
	citizen, ok := d.account(citizenID)
	if !ok {
		return nil, errors.Errorf("account %d not found", citizenID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := len(d.complaints) + 1
	ts := createdAt.UTC().Format(time.RFC3339)
	rec := core.Record{
		"complaint_id":         id,
		"reference_number":     fmt.Sprintf("CMP-%d-%04d", createdAt.Year(), id),
		"user_id":              citizen.ID,
		"government_entity_id": governmentID,
		"type":                 kind,
		"description":          description,
		"status":               "new",
		"note":                 nil,
		"handled_by":           nil,
		"created_at":           ts,
		"updated_at":           ts,
		"user":                 core.Record{"name": citizen.Name, "email": citizen.Email},
	}
	d.complaints = append(d.complaints, rec)
	return copyRecord(rec), nil
}

// SetComplaintStatus records the handling of a complaint by an employee.
func (d *Data) SetComplaintStatus(ref, status, note string, employeeID int, at time.Time) bool {
	employee, _ := d.account(employeeID)

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, rec := range d.complaints {
		if rec.String("reference_number") == ref {
			rec["status"] = status
			rec["note"] = note
			rec["handled_by"] = employee.Name
			rec["updated_at"] = at.UTC().Format(time.RFC3339)
			return true
		}
	}
	return false
}

// complaintsOf returns the complaints against `governmentID`, all of them when it is 0, newest first.
func (d *Data) complaintsOf(governmentID int) []core.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	complaints := make([]core.Record, 0, len(d.complaints))
	for _, rec := range d.complaints {
		if gov, _ := rec["government_entity_id"].(int); governmentID == 0 || gov == governmentID {
			complaints = append(complaints, copyRecord(rec))
		}
	}
	sort.SliceStable(complaints, func(i, j int) bool {
		return complaints[i].String("created_at") > complaints[j].String("created_at")
	})
	return complaints
}

func (d *Data) complaint(ref string) (core.Record, bool) {
	for _, rec := range d.complaintsOf(0) {
		if rec.String("reference_number") == ref {
			return rec, true
		}
	}
	return nil, false
}

func copyRecord(rec core.Record) core.Record {
	cp := make(core.Record, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Seed fills `d` with a small dataset. Every account uses `password`.
func Seed(d *Data, password string) error {
	now := time.Now()

	water := d.Insert(Governments, core.Record{"name": "Water Authority"})
	roads := d.Insert(Governments, core.Record{"name": "Roads Department"})
	waterID, _ := water["id"].(int)
	roadsID, _ := roads["id"].(int)

	accounts := []struct {
		name, email, role string
		gov               int
	}{
		{"Admin", "admin@barakah.test", session.RoleAdmin, 0},
		{"Water Authority", "org@barakah.test", session.RoleOrganization, waterID},
		{"Khadija Omar", "employee@barakah.test", session.RoleEmployee, waterID},
		{"Idris Musa", "teacher@barakah.test", session.RoleTeacher, 0},
		{"Amina Yusuf", "amina@barakah.test", "citizen", 0},
	}
	ids := make(map[string]int, len(accounts))
	for _, a := range accounts {
		id, err := d.AddAccount(a.name, a.email, password, a.role, a.gov)
		if err != nil {
			return errors.Wrapf(err, "adding account %s", a.email)
		}
		ids[a.email] = id
		if a.role == session.RoleEmployee {
			d.Insert(Employees, core.Record{"name": a.name, "email": a.email, "government_entity_id": a.gov, "user_id": id})
		}
	}
	d.Insert(Employees, core.Record{"name": "Bilal Hassan", "email": "bilal@barakah.test", "government_entity_id": roadsID})

	citizen := ids["amina@barakah.test"]
	complaints := []struct {
		gov         int
		kind, descr string
	}{
		{waterID, "leak", "Burst pipe on Market street"},
		{waterID, "quality", "Tap water is brown since Monday"},
		{roadsID, "pothole", "Deep pothole at the school crossing"},
	}
	for i, c := range complaints {
		if _, err := d.AddComplaint(citizen, c.gov, c.kind, c.descr, now.Add(time.Duration(i-len(complaints))*time.Hour)); err != nil {
			return err
		}
	}
	if first := d.complaintsOf(waterID); len(first) > 0 {
		d.SetComplaintStatus(first[len(first)-1].String("reference_number"), "in_progress", "Crew dispatched", ids["employee@barakah.test"], now)
	}

	for _, s := range []string{"Mathematics", "Physics", "Arabic"} {
		d.Insert(Subjects, core.Record{"name": s})
	}
	d.Insert(Teachers, core.Record{"name": "Idris Musa", "email": "teacher@barakah.test", "subject_id": 1})
	d.Insert(Students, core.Record{"name": "Yusuf Ali", "grade": 5})
	d.Insert(Students, core.Record{"name": "Mariam Said", "grade": 6})
	d.Insert(Courses, core.Record{"name": "Algebra I", "teacher_id": 1, "subject_id": 1})
	d.Insert(CourseSessions, core.Record{"courseId": 1, "date": now.Format("2006-01-02"), "topic": "Linear equations"})
	d.Insert(Buses, core.Record{"plate": "BRK-101", "driver": "Omar Farah", "capacity": 40})
	return nil
}
