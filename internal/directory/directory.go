// Package directory serves the checkpoint's static lookups: the contact
// list visitors may name, and the employee records used for authentication
// and door authorization. Files are JSON on disk, loaded into immutable
// snapshots; hot-reload swaps the snapshot wholesale.
package directory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Employee is one record from the employees file.
type Employee struct {
	Name        string      `json:"name"`
	Greeting    string      `json:"greeting"`
	Permissions Permissions `json:"permissions"`
}

// Permissions lists the door/camera ids an employee may pass.
type Permissions struct {
	Doors []string `json:"doors"`
}

// snapshot is one immutable view of both files.
type snapshot struct {
	contacts  map[string]string // canonical name -> email
	folded    map[string]string // lowercased name -> canonical name
	employees map[string]Employee
}

// Directory holds the current snapshot and swaps it on reload.
type Directory struct {
	mu            sync.RWMutex
	snap          snapshot
	contactsPath  string
	employeesPath string
}

// Load reads both files and returns a ready directory. The employees file
// is optional; a missing file leaves authentication disabled.
func Load(contactsPath, employeesPath string) (*Directory, error) {
	d := &Directory{contactsPath: contactsPath, employeesPath: employeesPath}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads both files and atomically swaps the snapshot.
// On any error the previous snapshot stays in place.
func (d *Directory) Reload() error {
	contacts, err := loadContacts(d.contactsPath)
	if err != nil {
		return err
	}

	employees := map[string]Employee{}
	if d.employeesPath != "" {
		employees, err = loadEmployees(d.employeesPath)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	folded := make(map[string]string, len(contacts))
	for name := range contacts {
		folded[strings.ToLower(name)] = name
	}

	d.mu.Lock()
	d.snap = snapshot{contacts: contacts, folded: folded, employees: employees}
	d.mu.Unlock()
	return nil
}

func loadContacts(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: read contacts: %w", err)
	}
	var contacts map[string]string
	if err := json.Unmarshal(data, &contacts); err != nil {
		return nil, fmt.Errorf("directory: parse contacts: %w", err)
	}
	return contacts, nil
}

func loadEmployees(path string) (map[string]Employee, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []Employee
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("directory: parse employees: %w", err)
	}
	employees := make(map[string]Employee, len(list))
	for _, e := range list {
		employees[e.Name] = e
	}
	return employees, nil
}

// Match resolves a candidate contact name to its canonical directory entry:
// exact match first, then case-insensitive. Returns ("", false) when the
// candidate is not in the directory.
func (d *Directory) Match(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.snap.contacts[candidate]; ok {
		return candidate, true
	}
	if canonical, ok := d.snap.folded[strings.ToLower(candidate)]; ok {
		return canonical, true
	}
	return "", false
}

// Email returns the address for a canonical contact name.
func (d *Directory) Email(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	addr, ok := d.snap.contacts[name]
	return addr, ok
}

// ContactNames lists canonical contact names for prompts and questions.
func (d *Directory) ContactNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.snap.contacts))
	for name := range d.snap.contacts {
		names = append(names, name)
	}
	return names
}

// Authenticate reports whether the named employee exists.
func (d *Directory) Authenticate(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.snap.employees[name]
	return ok
}

// Greeting returns the employee's personalized greeting, or "".
func (d *Directory) Greeting(name string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap.employees[name].Greeting
}

// AuthorizeDoor reports whether the employee may pass the given door.
// Unknown employees and empty door ids are refused.
func (d *Directory) AuthorizeDoor(name, doorID string) bool {
	if doorID == "" {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	emp, ok := d.snap.employees[name]
	if !ok {
		return false
	}
	for _, door := range emp.Permissions.Doors {
		if door == doorID {
			return true
		}
	}
	return false
}
