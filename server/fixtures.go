package server

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/chrisvdg/moviecache/movies"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// User represents an account served on /users
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

// Validate implements validation.Validatable
func (u User) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ID, validation.Required),
		validation.Field(&u.Email, validation.Required, is.Email),
		validation.Field(&u.Password, validation.Required),
	)
}

// Fixtures is the data served by the development API
type Fixtures struct {
	Movies []movies.Movie `json:"movies"`
	Users  []User         `json:"users"`
}

// Validate checks every movie and user
func (f *Fixtures) Validate() error {
	seen := map[int]bool{}
	for i, m := range f.Movies {
		err := validation.Errors{
			"id":    validation.Validate(m.ID, validation.Required, validation.Min(1)),
			"title": validation.Validate(m.Title, validation.Required),
		}.Filter()
		if err != nil {
			return errors.Wrapf(err, "movie %d", i)
		}
		if seen[m.ID] {
			return errors.Errorf("movie %d: duplicate id %d", i, m.ID)
		}
		seen[m.ID] = true
	}
	for i, u := range f.Users {
		if err := u.Validate(); err != nil {
			return errors.Wrapf(err, "user %d", i)
		}
	}
	return nil
}

// LoadFixtures reads fixtures from path, or returns the built-in seed when path is empty.
// Plain text passwords are replaced by their bcrypt hash.
func LoadFixtures(path string) (*Fixtures, error) {
	f := seed()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read fixtures file")
		}
		f = &Fixtures{}
		if err := json.Unmarshal(data, f); err != nil {
			return nil, errors.Wrap(err, "failed to parse fixtures file")
		}
	}

	if err := f.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid fixtures")
	}
	if err := f.hashPasswords(); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *Fixtures) hashPasswords() error {
	for i, u := range f.Users {
		if strings.HasPrefix(u.Password, "$2") {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return errors.Wrapf(err, "failed to hash password of %s", u.Email)
		}
		f.Users[i].Password = string(hash)
	}
	return nil
}

func seed() *Fixtures {
	return &Fixtures{
		Movies: []movies.Movie{
			{
				ID:         1,
				Title:      "Inception",
				Year:       2010,
				Genre:      []string{"Action", "Adventure", "Sci-Fi"},
				Rating:     8.8,
				Director:   "Christopher Nolan",
				Actors:     []string{"Leonardo DiCaprio", "Joseph Gordon-Levitt", "Elliot Page"},
				Plot:       "A thief who steals corporate secrets through dream-sharing technology is given the inverse task of planting an idea into the mind of a C.E.O.",
				Poster:     "https://fakeimg.pl/220x310/ff0000",
				Trailer:    "https://example.com/inception_trailer.mp4",
				Runtime:    148,
				Awards:     "Won 4 Oscars",
				Country:    "USA",
				Language:   "English",
				BoxOffice:  "$836.8 million",
				Production: "Warner Bros. Pictures",
				Website:    "https://www.warnerbros.com/movies/inception",
			},
			{
				ID:         2,
				Title:      "Heat",
				Year:       1995,
				Genre:      []string{"Action", "Crime", "Drama"},
				Rating:     8.3,
				Director:   "Michael Mann",
				Actors:     []string{"Al Pacino", "Robert De Niro", "Val Kilmer"},
				Plot:       "A group of high-end professional thieves start to feel the heat from the LAPD when they unknowingly leave a clue at their latest heist.",
				Poster:     "https://fakeimg.pl/220x310/00ff00",
				Trailer:    "https://example.com/heat_trailer.mp4",
				Runtime:    170,
				Country:    "USA",
				Language:   "English",
				BoxOffice:  "$187.4 million",
				Production: "Warner Bros. Pictures",
				Website:    "https://www.warnerbros.com/movies/heat",
			},
			{
				ID:         3,
				Title:      "The Dark Knight",
				Year:       2008,
				Genre:      []string{"Action", "Crime", "Drama"},
				Rating:     9,
				Director:   "Christopher Nolan",
				Actors:     []string{"Christian Bale", "Heath Ledger", "Gary Oldman"},
				Plot:       "When the menace known as the Joker wreaks havoc and chaos on the people of Gotham, Batman must accept one of the greatest psychological and physical tests of his ability to fight injustice.",
				Poster:     "https://fakeimg.pl/220x310/ff00ff",
				Trailer:    "https://example.com/the_dark_knight_trailer.mp4",
				Runtime:    152,
				Awards:     "Won 2 Oscars",
				Country:    "USA",
				Language:   "English",
				BoxOffice:  "$1.005 billion",
				Production: "Warner Bros. Pictures",
				Website:    "https://www.warnerbros.com/movies/dark-knight",
			},
		},
		Users: []User{
			{ID: "1", Email: "demo@example.com", Name: "Demo", Password: "password"},
		},
	}
}
