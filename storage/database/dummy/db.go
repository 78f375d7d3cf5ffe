package dummydb

import (
	"sync"

	"github.com/darasa/backend/core/account"
	"github.com/darasa/backend/core/class"
	"github.com/darasa/backend/core/quiz"
)

type (
	DB struct {
		account *accountTable
		class   *classTable
		quiz    *quizTable
	}

	accountTable struct {
		sync.RWMutex
		table map[string]*account.Account
	}

	// classTable holds classes and their satellite rows under one lock so
	// join-code consumption stays atomic.
	classTable struct {
		sync.RWMutex
		classes     map[string]*class.Class
		enrollments map[string]*class.Enrollment
		joinCodes   map[string]*class.JoinCode
		joinReqs    map[string]*class.JoinRequest
	}

	quizTable struct {
		sync.RWMutex
		quizzes map[string]*quiz.Quiz
		results map[string]*quiz.Result
	}
)

func Open() (*DB, error) {
	db := &DB{
		account: &accountTable{table: make(map[string]*account.Account)},
		class: &classTable{
			classes:     make(map[string]*class.Class),
			enrollments: make(map[string]*class.Enrollment),
			joinCodes:   make(map[string]*class.JoinCode),
			joinReqs:    make(map[string]*class.JoinRequest),
		},
		quiz: &quizTable{
			quizzes: make(map[string]*quiz.Quiz),
			results: make(map[string]*quiz.Result),
		},
	}
	return db, nil
}
